package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nerrad567/envmonitor/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultRetryDelay     = 500 * time.Millisecond
	maxRetryDelay         = 10 * time.Second
)

// Logger is the subset of logging used while connecting.
type Logger interface {
	Warn(msg string, args ...any)
}

// Client wraps a mongo.Client bound to one database and collection.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	client     *mongo.Client
	database   string
	collection string

	mu     sync.RWMutex
	closed bool
}

// Connect dials MongoDB and verifies the connection with a primary ping.
//
// A failed attempt is retried cfg.ConnectRetries times, waiting
// cfg.RetryInitialDelay milliseconds before the first retry and doubling the
// wait after each one (capped at 10s). log may be nil.
func Connect(ctx context.Context, cfg config.MongoDBConfig, log Logger) (*Client, error) {
	connectTimeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	delay := time.Duration(cfg.RetryInitialDelay) * time.Millisecond
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.ConnectRetries; attempt++ {
		if attempt > 0 {
			if log != nil {
				log.Warn("mongodb connection failed, retrying",
					"attempt", attempt,
					"delay", delay.String(),
					"error", lastErr,
				)
			}
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
			case <-time.After(delay):
			}
			delay = min(delay*2, maxRetryDelay)
		}

		client, err := dial(ctx, opts, connectTimeout)
		if err == nil {
			return &Client{
				client:     client,
				database:   cfg.Database,
				collection: cfg.Collection,
			}, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrConnectionFailed, cfg.ConnectRetries+1, lastErr)
}

func dial(ctx context.Context, opts *options.ClientOptions, timeout time.Duration) (*mongo.Client, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(attemptCtx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(attemptCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background()) //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	return client, nil
}

// Collection returns the configured readings collection.
func (c *Client) Collection() *mongo.Collection {
	return c.client.Database(c.database).Collection(c.collection)
}

// HealthCheck pings the primary.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrNotConnected
	}

	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects from the server. Safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting mongodb: %w", err)
	}
	return nil
}
