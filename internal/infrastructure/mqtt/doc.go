// Package mqtt provides MQTT broker connectivity for the PLC bridge.
//
// This package manages:
//   - Non-blocking single connection attempts (retry timing is owned by the caller)
//   - At-most-once message publishing, retained or not
//   - Topic subscriptions with wildcard support
//   - A bounded inbox that decouples paho's goroutines from the caller
//
// # Delivery model
//
// paho invokes subscription callbacks on its own goroutines. This package
// only enqueues from those callbacks; handlers run when the owner calls
// Loop, which keeps all bridge state on a single goroutine:
//
//	paho router ──enqueue──► inbox ──Loop()──► handler
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, cfg.Device.ID)
//	for done := false; !done; {
//	    done, err = client.Connect() // polls; never waits
//	}
//	client.Subscribe("plc/plc-01/#", 0, func(topic string, payload []byte) error {
//	    return nil
//	})
//	for range ticker.C {
//	    client.Loop()
//	}
package mqtt
