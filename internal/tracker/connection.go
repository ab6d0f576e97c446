package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/yegors/co-track/internal/aircraft"
	"github.com/yegors/co-track/internal/config"
	"github.com/yegors/co-track/internal/feed"
	"github.com/yegors/co-track/internal/feed/basestation"
	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/metrics"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

const (
	readBufferSize        = 4096
	defaultReconnectDelay = time.Second
	corruptLogInterval    = time.Minute
)

// Dialer opens a feed connection
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// ConnectionStatus describes one feed connection
type ConnectionStatus struct {
	Name        string    `json:"name"`
	Format      string    `json:"format"`
	Address     string    `json:"address"`
	Connected   bool      `json:"connected"`
	Messages    int64     `json:"messages"`
	Reconnects  int64     `json:"reconnects"`
	LastMessage time.Time `json:"last_message"`
	LastError   string    `json:"last_error,omitempty"`
}

// connection reads one feed, redialling whenever it drops
type connection struct {
	cfg      config.FeedConfig
	registry *feed.Registry
	list     *aircraft.List
	dial     Dialer
	logger   *logger.Logger
	clock    func() time.Time

	// owned by the serving goroutine
	lastCorrupt time.Time
	suppressed  int

	mu     sync.Mutex
	status ConnectionStatus
}

func newConnection(cfg config.FeedConfig, registry *feed.Registry, list *aircraft.List, dial Dialer, log *logger.Logger) *connection {
	return &connection{
		cfg:      cfg,
		registry: registry,
		list:     list,
		dial:     dial,
		logger:   log.With(logger.String("feed", cfg.Name)),
		clock:    time.Now,
		status: ConnectionStatus{
			Name:    cfg.Name,
			Format:  cfg.Format,
			Address: cfg.Address,
		},
	}
}

func (c *connection) run(ctx context.Context) {
	delay := c.cfg.ReconnectInterval()
	if delay <= 0 {
		delay = defaultReconnectDelay
	}

	for {
		err := c.serve(ctx)
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		c.status.LastError = err.Error()
		c.status.Reconnects++
		c.mu.Unlock()
		metrics.FeedReconnects.WithLabelValues(c.cfg.Name).Inc()

		c.logger.Warn("Feed connection lost",
			logger.Error(err),
			logger.Duration("retry_in", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// serve runs one connection until it fails or ctx is done
func (c *connection) serve(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout())
	conn, err := c.dial(dialCtx, "tcp", c.cfg.Address)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.Address, err)
	}
	defer conn.Close()

	decoder, err := c.registry.New(c.cfg.Format, c.logger)
	if err != nil {
		return err
	}
	defer decoder.Close()

	if err := decoder.Configure(feed.Options{
		StrictIcao:     c.cfg.StrictIcao,
		TimeZoneOffset: c.cfg.TimeZoneOffset(),
		MaxChunkSize:   c.cfg.MaxChunkSize,
	}); err != nil {
		return fmt.Errorf("failed to configure decoder: %w", err)
	}
	defer decoder.OnMessage(c.handleMessage)()
	defer decoder.OnLookup(c.handleLookup)()

	// Unblock the read below on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.setConnected(true)
	defer c.setConnected(false)
	c.logger.Info("Feed connected",
		logger.String("address", c.cfg.Address),
		logger.String("format", decoder.Format()))

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if perr := decoder.ParseFeedPacket(ctx, buf[:n]); perr != nil {
				c.reportRejected(perr)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("feed closed the connection")
			}
			return fmt.Errorf("failed to read from feed: %w", err)
		}
	}
}

// reportRejected logs data the decoder refused. Malformed dates mean the
// receiver or the link is corrupting records, those are warned about at most
// once per corruptLogInterval.
func (c *connection) reportRejected(err error) {
	if !errors.Is(err, basestation.ErrInvalidDateTime) {
		c.logger.Debug("Feed data rejected", logger.Error(err))
		return
	}

	now := c.clock()
	if !c.lastCorrupt.IsZero() && now.Sub(c.lastCorrupt) < corruptLogInterval {
		c.suppressed++
		return
	}
	c.logger.Warn("Feed sent malformed date/time, upstream data may be corrupt",
		logger.Error(err),
		logger.Int("suppressed", c.suppressed))
	c.lastCorrupt = now
	c.suppressed = 0
}

func (c *connection) dialTimeout() time.Duration {
	if d := c.cfg.DialTimeout(); d > 0 {
		return d
	}
	return 10 * time.Second
}

func (c *connection) handleMessage(msg *transponder.Message) {
	c.list.ApplyMessage(msg)

	c.mu.Lock()
	c.status.Messages++
	c.status.LastMessage = c.clock().UTC()
	c.mu.Unlock()
}

func (c *connection) handleLookup(outcome lookup.Outcome) {
	c.list.ApplyLookup(outcome)
}

func (c *connection) setConnected(connected bool) {
	c.mu.Lock()
	c.status.Connected = connected
	if connected {
		c.status.LastError = ""
	}
	c.mu.Unlock()

	value := 0.0
	if connected {
		value = 1
	}
	metrics.FeedConnections.WithLabelValues(c.cfg.Name).Set(value)
}

func (c *connection) snapshot() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}
