package plc

import (
	"time"
)

// supervise advances the connection state machine by one step.
//
// The link is checked first. An absent link device halts networking for
// the life of the process; any other link error is retried next tick.
// With the link up, a disconnected bridge starts a connection attempt
// when it has never tried before or the debounce window since the last
// attempt has elapsed. An attempt in flight is polled once per tick and
// never waited on, so scanning keeps its pace while the broker is
// unreachable.
//
// Returns:
//   - bool: true if the session is up and inbound messages should be serviced
func (b *Bridge) supervise(now time.Time) bool {
	if b.halted {
		return false
	}

	if b.link != nil {
		if err := b.link.Ready(); err != nil {
			if isHardwareAbsent(err) {
				b.halted = true
				b.connected = false
				b.logError("network hardware not found, networking halted", err)
				return false
			}
			if !b.linkDown {
				b.linkDown = true
				b.logWarn("network link not ready", "error", err)
			}
			return false
		}
		if b.linkDown {
			b.linkDown = false
			b.logInfo("network link ready", "address", b.link.Address())
		}
	}

	if b.mqtt.IsConnected() {
		if b.connecting {
			// Collect the finished attempt so the next one starts fresh.
			if done, _ := b.mqtt.Connect(); done {
				b.connecting = false
			}
		}
		if !b.connected {
			// Transport reconnected without us; treat it as a fresh session.
			b.onConnected()
		} else if !b.subscribed {
			b.subscribe()
		}
		return true
	}

	if b.connected {
		b.connected = false
		b.subscribed = false
		b.logWarn("MQTT connection lost")
	}

	if !b.connecting {
		if !b.lastAttempt.IsZero() && now.Sub(b.lastAttempt) < b.debounce {
			return false
		}
		b.lastAttempt = now
		b.attempts++
		b.connecting = true
		b.logInfo("connecting to MQTT broker", "attempt", b.attempts)
	}

	done, err := b.mqtt.Connect()
	if !done {
		return false
	}
	b.connecting = false

	if err == nil && !b.mqtt.IsConnected() {
		err = ErrSessionLost
	}
	if err != nil {
		b.logWarn("MQTT connect failed",
			"error", err,
			"attempt", b.attempts,
			"retry_in", b.debounce)
		return false
	}

	b.onConnected()
	return true
}

// onConnected runs the (re)connect sequence: report, discovery, output
// state republication, subscription.
func (b *Bridge) onConnected() {
	b.connected = true
	b.subscribed = false
	b.attempts = 0

	if b.link != nil {
		b.logInfo("MQTT connected", "local_address", b.link.Address())
	} else {
		b.logInfo("MQTT connected")
	}
	b.report("Connected")
	b.Announce()
	b.republishOutputs()
	b.subscribe()
}

// subscribe registers the device-wide filter. A failure is retried on
// the next tick.
func (b *Bridge) subscribe() {
	filter := b.topics.Subscription()
	err := b.mqtt.Subscribe(filter, qos, func(topic string, payload []byte) error {
		// Rejections are already logged and reported by the router.
		_ = b.OnMessage(topic, payload)
		return nil
	})
	if err != nil {
		b.logError("failed to subscribe", err, "topic", filter)
		return
	}
	b.subscribed = true
	b.logInfo("subscribed", "topic", filter)
}

// republishOutputs publishes the last known value of every output so
// consumers see current state after discovery.
func (b *Bridge) republishOutputs() {
	for _, ch := range b.table.Relays() {
		b.republish(ch.Name, ch.Kind)
	}
	for _, ch := range b.table.Outputs() {
		b.republish(ch.Name, ch.Kind)
	}
}
