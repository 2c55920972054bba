// Package journal persists route events to Postgres. Every advertised and
// received UPDATE lands in the route_journal table, deduplicated per day by
// the hash of its wire bytes.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/route-beacon/route-pusher/internal/bgp"
	"github.com/route-beacon/route-pusher/internal/metrics"
)

var zstdEncoder, _ = zstd.NewWriter(nil)

const createJournalTable = `
CREATE TABLE IF NOT EXISTS route_journal (
    event_id BYTEA NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL,
    direction TEXT NOT NULL,
    prefixes TEXT[],
    withdrawn TEXT[],
    attrs JSONB,
    raw BYTEA,
    PRIMARY KEY (event_id, recorded_at)
);
CREATE INDEX IF NOT EXISTS idx_route_journal_recorded_at
    ON route_journal (recorded_at DESC);`

// Journal writes route events to Postgres. It implements inject.Sink.
type Journal struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	storeRaw    bool
	compressRaw bool
}

func New(pool *pgxpool.Pool, logger *zap.Logger, storeRaw, compressRaw bool) *Journal {
	return &Journal{
		pool:        pool,
		logger:      logger,
		storeRaw:    storeRaw,
		compressRaw: compressRaw,
	}
}

func (j *Journal) Name() string { return "journal" }

// EnsureSchema creates the journal table if it does not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.pool.Exec(ctx, createJournalTable); err != nil {
		return fmt.Errorf("creating route_journal: %w", err)
	}
	return nil
}

// Ping reports whether the backing database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}

// Record inserts one route event. Duplicate events (same wire bytes on the
// same day) are silently skipped so that retried or replayed advertisements
// do not pile up.
func (j *Journal) Record(ctx context.Context, ev *bgp.RouteEvent) error {
	attrsJSON, err := json.Marshal(ev.Attrs)
	if err != nil {
		return fmt.Errorf("marshal attrs: %w", err)
	}

	var raw []byte
	if j.storeRaw && len(ev.Raw) > 0 {
		if j.compressRaw {
			raw = zstdEncoder.EncodeAll(ev.Raw, nil)
		} else {
			raw = ev.Raw
		}
	}

	tag, err := j.pool.Exec(ctx, `
		INSERT INTO route_journal (event_id, recorded_at, direction, prefixes, withdrawn, attrs, raw)
		VALUES ($1, date_trunc('day', now()), $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, recorded_at) DO NOTHING`,
		eventID(ev), ev.Direction, ev.Prefixes, ev.Withdrawn, attrsJSON, raw,
	)
	if err != nil {
		return fmt.Errorf("insert route_journal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		metrics.JournalDedupTotal.Inc()
		j.logger.Debug("duplicate event skipped", zap.String("direction", ev.Direction))
	}
	return nil
}

// Prune deletes journal rows older than the retention window and returns
// the number of rows removed.
func (j *Journal) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %d", retentionDays)
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	tag, err := j.pool.Exec(ctx,
		`DELETE FROM route_journal WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning route_journal: %w", err)
	}
	removed := tag.RowsAffected()
	metrics.JournalPrunedRowsTotal.Add(float64(removed))
	j.logger.Info("journal pruned",
		zap.Int64("rows", removed),
		zap.Time("cutoff", cutoff))
	return removed, nil
}
