// Package clickhouse is an append-only flipper.Instrumenter writing one row
// per evaluation/mutation event, grounded on db/clickhouse.Store — the
// teacher's only direct clickhouse-go/v2 usage site — re-pointed at a single
// narrow events table instead of the teacher's pricing-snapshot schema
// (§4.6, §9 "instrumentation" — an append-only analytics sink is the
// natural home for this dependency since nothing else in this module has a
// columnar-analytics workload).
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	chdriver "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/larouxn/flipper/pkg/flipper"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default local-development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "flipper",
		Username: "default",
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS flipper_events (
	id String,
	feature_name String,
	operation String,
	gate_name String,
	result String,
	actor_ids Array(String),
	occurred_at DateTime64(3)
) ENGINE = MergeTree ORDER BY (feature_name, occurred_at)
`

// Instrumenter is a flipper.Instrumenter that appends one row per event.
type Instrumenter struct {
	conn   chdriver.Conn
	logger *slog.Logger
}

// New connects to ClickHouse and ensures the events table exists.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Instrumenter, error) {
	conn, err := chdriver.Open(&chdriver.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: chdriver.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Compression: &chdriver.Compression{
			Method: chdriver.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse instrumenter: connect: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse instrumenter: ping: %w", err)
	}
	if err := conn.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("clickhouse instrumenter: migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumenter{conn: conn, logger: logger}, nil
}

var _ flipper.Instrumenter = (*Instrumenter)(nil)

// Close releases the underlying connection.
func (i *Instrumenter) Close() error { return i.conn.Close() }

// Instrument implements flipper.Instrumenter. Write failures are logged,
// not propagated — an analytics sink going down must never fail the
// feature-flag decision it's recording (§4.6, §7).
func (i *Instrumenter) Instrument(ctx context.Context, event flipper.Event) {
	result, err := json.Marshal(event.Result)
	if err != nil {
		result = []byte(fmt.Sprintf("%v", event.Result))
	}
	actorIDs := make([]string, 0, len(event.Actors))
	for _, actor := range event.Actors {
		if actor == nil {
			continue
		}
		actorIDs = append(actorIDs, actor.FlipperID())
	}
	err = i.conn.Exec(ctx, `INSERT INTO flipper_events
		(id, feature_name, operation, gate_name, result, actor_ids, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.FeatureName, event.Operation, string(event.GateName),
		string(result), actorIDs, eventTime(event))
	if err != nil {
		i.logger.Warn("clickhouse instrumenter: write failed", "event", event.ID, "error", err)
	}
}

func eventTime(event flipper.Event) time.Time {
	if event.Timestamp.IsZero() {
		return time.Now()
	}
	return event.Timestamp
}
