package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config parameters for MongoDB connection
type Config struct {
	URI            string        `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	DBName         string        `env:"MONGO_DBNAME" envDefault:"insertDB"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"5s"`
}

// Connector owns the process-wide MongoDB client. It connects on first use
// and must be closed on shutdown.
type Connector struct {
	cfg    Config
	mu     sync.Mutex
	client *mongo.Client
}

func NewConnector(cfg Config) *Connector {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	return &Connector{cfg: cfg}
}

// Database connects if needed and returns the configured database.
func (c *Connector) Database(ctx context.Context) (*mongo.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		client, err := NewMongoDBConnection(ctx, c.cfg)
		if err != nil {
			return nil, err
		}
		c.client = client
	}
	return c.client.Database(c.cfg.DBName), nil
}

func (c *Connector) Ping(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("mongodb: not connected")
	}
	return client.Ping(ctx, nil)
}

// Close disconnects the client if one was established.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}

// NewMongoDBConnection creates a new connection to MongoDB
func NewMongoDBConnection(ctx context.Context, cfg Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	err = client.Ping(ctx, nil)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}
