package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/saviobatista/bike-logger/internal/timeseries"
)

// Tx is one ingestion cycle's unit of work. Nothing written through it is
// visible until Commit.
type Tx struct {
	tx     *sql.Tx
	client *Client

	// months whose partitions were created in this transaction
	pending map[string]bool
}

// Commit commits the transaction and records the partitions it created
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return err
	}
	t.client.markMonths(t.pending)
	return nil
}

// Rollback aborts the transaction. Partitions created in it are forgotten
// because their DDL was rolled back too.
func (t *Tx) Rollback() error {
	t.pending = make(map[string]bool)
	return t.tx.Rollback()
}

// EnsurePartitions creates the monthly partitions containing ts for every
// partitioned table. Months already ensured by a committed transaction are skipped.
func (t *Tx) EnsurePartitions(ctx context.Context, ts time.Time) error {
	key := timeseries.MonthKey(ts)
	if t.pending[key] || t.client.monthEnsured(key) {
		return nil
	}

	start, end := timeseries.MonthBounds(ts)
	for _, table := range timeseries.PartitionedTables {
		query := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM (%s) TO (%s)",
			pq.QuoteIdentifier(timeseries.PartitionName(table, ts)),
			pq.QuoteIdentifier(table),
			pq.QuoteLiteral(start.Format(time.RFC3339)),
			pq.QuoteLiteral(end.Format(time.RFC3339)),
		)
		if _, err := t.tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create partition of %s for %s: %w", table, key, err)
		}
	}

	t.pending[key] = true
	return nil
}
