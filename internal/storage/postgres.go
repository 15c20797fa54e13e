// Package storage adapts domain.TickSink and domain.StudySink onto
// PostgreSQL via lib/pq, standing in for spec.md's opaque "tick persister"
// downstream consumer. Grounded on the teacher's
// internal/infrastructure/database package: same connection-pool
// construction, same explicit *slog.Logger injection, same wrapped-error
// idiom.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

// Config holds the connection parameters for the sink's Postgres database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c Config) connectString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// DB wraps *sql.DB with the pool tuning the teacher applies.
type DB struct {
	*sql.DB
}

// Connect opens and pings a PostgreSQL connection per cfg.
func Connect(cfg Config) (*DB, error) {
	db, err := sql.Open("postgres", cfg.connectString())
	if err != nil {
		return nil, fmt.Errorf("storage: open connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	return &DB{db}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

// PostgresSink implements domain.TickSink and domain.StudySink. Bars and
// indicator rows are variable-length vectors, so each is stored as a jsonb
// array of decimal strings rather than fixed numeric columns — precision
// preserving without needing a bar-shape migration whenever a study adds a
// plot.
type PostgresSink struct {
	db     *DB
	logger *slog.Logger
}

// NewPostgresSink returns a sink writing through db, logging via logger.
func NewPostgresSink(db *DB, logger *slog.Logger) *PostgresSink {
	return &PostgresSink{db: db, logger: logger.With("component", "storage")}
}

const insertBarQuery = `
	INSERT INTO tv_bars (symbol, bar_values, recorded_at)
	VALUES ($1, $2::jsonb, NOW())
`

// SaveBars implements domain.TickSink, called from a subscriber goroutine
// on a dispatched UpdateEvent — never from the reader goroutine itself.
func (s *PostgresSink) SaveBars(ctx context.Context, symbol string, bars []domain.Bar) error {
	for _, bar := range bars {
		values := make([]string, len(bar))
		for i, v := range bar {
			values[i] = v.String()
		}
		encoded, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("storage: encode bar for %s: %w", symbol, err)
		}
		if _, err := s.db.ExecContext(ctx, insertBarQuery, symbol, encoded); err != nil {
			return fmt.Errorf("storage: insert bar for %s: %w", symbol, err)
		}
	}
	return nil
}

const insertIndicatorRowQuery = `
	INSERT INTO tv_indicator_rows (study_id, columns, raw_values, recorded_at)
	VALUES ($1, $2::jsonb, $3::jsonb, NOW())
`

// SaveIndicatorRows implements domain.StudySink.
func (s *PostgresSink) SaveIndicatorRows(ctx context.Context, studyID string, rows []domain.MappedPoint) error {
	for _, row := range rows {
		columnsJSON, err := marshalColumns(row.Columns)
		if err != nil {
			return fmt.Errorf("storage: encode columns for %s: %w", studyID, err)
		}

		raw := make([]string, len(row.Raw))
		for i, v := range row.Raw {
			raw[i] = v.String()
		}
		rawJSON, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("storage: encode raw row for %s: %w", studyID, err)
		}

		if _, err := s.db.ExecContext(ctx, insertIndicatorRowQuery, studyID, columnsJSON, rawJSON); err != nil {
			return fmt.Errorf("storage: insert indicator row for %s: %w", studyID, err)
		}
	}
	return nil
}

func marshalColumns(cols map[string]interface{}) ([]byte, error) {
	if cols == nil {
		return []byte("null"), nil
	}
	out := make(map[string]string, len(cols))
	for k, v := range cols {
		if d, ok := v.(domain.Bar); ok {
			out[k] = fmt.Sprint([]domain.Bar{d})
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return json.Marshal(out)
}
