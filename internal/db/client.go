package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/lib/pq"
)

// MaterializedViews lists the aggregate views in refresh order
var MaterializedViews = []string{
	"mv_hotspots_hourly",
	"mv_city_bikes_hourly",
	"mv_routes_top",
	"mv_bike_dwell",
}

// Client wraps the store connection pool and the set of months whose
// partitions are known to exist
type Client struct {
	db *sql.DB

	mu     sync.Mutex
	months map[string]bool
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection pool
func NewWithDB(db *sql.DB) *Client {
	return &Client{db: db, months: make(map[string]bool)}
}

// DB exposes the underlying pool for migrations
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping checks that the store is reachable
func (c *Client) Ping(ctx context.Context) error {
	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return err
	}
	return nil
}

// Begin starts the transaction of one ingestion cycle
func (c *Client) Begin(ctx context.Context) (*Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx, client: c, pending: make(map[string]bool)}, nil
}

// RefreshViews refreshes the given materialized views outside of any cycle transaction
func (c *Client) RefreshViews(ctx context.Context, views []string) error {
	for _, view := range views {
		if _, err := c.db.ExecContext(ctx, "REFRESH MATERIALIZED VIEW "+pq.QuoteIdentifier(view)); err != nil {
			return fmt.Errorf("refresh %s: %w", view, err)
		}
	}
	return nil
}

func (c *Client) monthEnsured(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.months[key]
}

func (c *Client) markMonths(keys map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range keys {
		c.months[k] = true
	}
}
