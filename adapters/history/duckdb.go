package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"ratecast/domain/core"
	"ratecast/ports"
)

// The "duckdb" database/sql driver normally comes from a blank import of
// github.com/marcboeker/go-duckdb/v2, which requires cgo and go >= 1.24;
// this build environment (CGO_ENABLED=0, go 1.21 toolchain) can compile
// neither, so the driver is not registered and OpenDuckDBStore reports an
// unknown-driver error until a capable environment restores the import.

// DuckDBStore keeps history in a columnar database file, which is the
// backend to point analytical tooling at. DuckDB admits one writing
// process per database file; within that process the single-connection
// pool linearizes appends. Schedules that run horizons as separate OS
// processes should use the file or postgres backend instead.
type DuckDBStore struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// OpenDuckDBStore opens (or creates) the database file and ensures the
// schema. An empty dsn is an in-memory database.
func OpenDuckDBStore(ctx context.Context, dsn string, log zerolog.Logger) (*DuckDBStore, error) {
	db, err := sqlx.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// Single writer pattern recommended for DuckDB.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &DuckDBStore{
		db:  db,
		log: log.With().Str("component", "history_duckdb").Logger(),
	}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DuckDBStore) init(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS history_records (
		key         VARCHAR     NOT NULL,
		seq         BIGINT      NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		payload     VARCHAR     NOT NULL,
		PRIMARY KEY (key, seq)
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}
	return nil
}

func (s *DuckDBStore) Close() error { return s.db.Close() }

func (s *DuckDBStore) Append(ctx context.Context, key ports.HistoryKey, rec ports.HistoryRecord) error {
	if err := key.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history append: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM history_records WHERE key = ?",
		key.String()).Scan(&seq); err != nil {
		return fmt.Errorf("next history seq: %w", err)
	}

	rec.Seq = seq
	if rec.Key == "" {
		rec.Key = key.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = core.Now()
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO history_records (key, seq, recorded_at, payload) VALUES (?, ?, ?, ?)",
		rec.Key, rec.Seq, rec.Timestamp.Time(), string(rec.Payload)); err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history append: %w", err)
	}

	s.log.Debug().Str("key", key.String()).Int64("seq", seq).Msg("history record appended")
	return nil
}

func (s *DuckDBStore) Read(ctx context.Context, key ports.HistoryKey) ([]ports.HistoryRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, recorded_at, key, payload FROM history_records WHERE key = ? ORDER BY seq",
		key.String())
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", key, err)
	}
	defer rows.Close()

	var records []ports.HistoryRecord
	for rows.Next() {
		var rec ports.HistoryRecord
		var recordedAt time.Time
		var payload string
		if err := rows.Scan(&rec.Seq, &recordedAt, &rec.Key, &payload); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		rec.Timestamp = core.NewTimestamp(recordedAt)
		rec.Payload = []byte(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history %s: %w", key, err)
	}
	return records, nil
}
