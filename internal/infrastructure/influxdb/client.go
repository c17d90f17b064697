package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
)

const (
	startupPingTimeout = 5 * time.Second
	healthPingTimeout  = 2 * time.Second

	fallbackBatchSize     = 50
	fallbackFlushInterval = 5 * time.Second
)

// Client records channel state changes in InfluxDB.
//
// Points go through the library's non-blocking write API, so the polling
// loop only appends to an in-memory batch. Rejected batches are reported
// to the callback set with SetOnError, on the library's goroutine.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	open    atomic.Bool
	onError atomic.Pointer[func(error)]
}

// Connect builds a client for cfg and pings the server once.
//
// Returns:
//   - *Client: Open client
//   - error: ErrDisabled when telemetry is off, ErrConnectionFailed when the
//     ping does not succeed
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	c.open.Store(true)
	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

// writeOptions maps batch settings onto client options. The flush interval
// is configured in seconds; the library takes milliseconds.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := fallbackBatchSize
	if cfg.BatchSize > 0 {
		batch = cfg.BatchSize
	}
	flush := fallbackFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	// #nosec G115 -- both values are positive
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flush.Milliseconds()))
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return fmt.Errorf("server reports unhealthy")
	}
	return nil
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		if cb := c.onError.Load(); cb != nil {
			(*cb)(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// Close flushes buffered points and releases the client. Safe on nil and
// safe to call twice.
func (c *Client) Close() error {
	if c == nil || !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open.
func (c *Client) IsConnected() bool {
	return c != nil && c.open.Load()
}

// SetOnError sets the callback for rejected batches.
func (c *Client) SetOnError(callback func(err error)) {
	c.onError.Store(&callback)
}

// Flush sends buffered points now. No-op once closed.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}
