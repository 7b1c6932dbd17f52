package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"medibook/internal/config"
)

// DialFunc opens a new client. The default dialer pings the primary before
// returning.
type DialFunc func(ctx context.Context) (*mongo.Client, error)

// Holder lazily connects to the document store and shares the connection
// with every caller for the lifetime of the process.
type Holder struct {
	dial   DialFunc
	dbName string

	mu     sync.Mutex
	client *mongo.Client
}

// NewHolder returns a holder for the configured deployment. Nothing is
// dialed until the first call to Database.
func NewHolder(cfg config.MongoConfig) *Holder {
	return NewHolderWithDialer(cfg.Database, func(ctx context.Context) (*mongo.Client, error) {
		ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()

		opts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(cfg.ConnectTimeout)
		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return client, nil
	})
}

// NewHolderWithDialer allows injecting a dialer for tests.
func NewHolderWithDialer(dbName string, dial DialFunc) *Holder {
	return &Holder{dial: dial, dbName: dbName}
}

// Client returns the shared client, connecting on first use. Callers that
// arrive while a connection attempt is in flight wait for it. A failed
// attempt is reported to its waiters and retried by the next caller.
func (h *Holder) Client(ctx context.Context) (*mongo.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		return h.client, nil
	}
	client, err := h.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	h.client = client
	return client, nil
}

// Database returns the configured database on the shared client.
func (h *Holder) Database(ctx context.Context) (*mongo.Database, error) {
	client, err := h.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(h.dbName), nil
}

// Collection is a shortcut for Database(ctx).Collection(name).
func (h *Holder) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := h.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// Close disconnects the shared client if one was established.
func (h *Holder) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := h.client.Disconnect(ctx)
	h.client = nil
	return err
}
