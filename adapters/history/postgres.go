package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"ratecast/domain/core"
	"ratecast/ports"
)

// pqLockNotAvailable is the Postgres error code raised when lock_timeout
// expires while waiting on the advisory lock.
const pqLockNotAvailable = "55P03"

// PostgresStore keeps history in one table, linearizing writers per key
// with a transaction-scoped advisory lock on the key's hash. Readers
// run plain MVCC selects and never wait on writers.
type PostgresStore struct {
	db          *sqlx.DB
	lockTimeout time.Duration
	log         zerolog.Logger
}

func NewPostgresStore(db *sqlx.DB, lockTimeout time.Duration, log zerolog.Logger) *PostgresStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &PostgresStore{
		db:          db,
		lockTimeout: lockTimeout,
		log:         log.With().Str("component", "history_postgres").Logger(),
	}
}

// OpenPostgresStore connects, pings, and ensures the schema.
func OpenPostgresStore(ctx context.Context, dsn string, lockTimeout time.Duration, log zerolog.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, core.NewConfigError("history.dsn", "required for the postgres backend")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	s := NewPostgresStore(db, lockTimeout, log)
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the history table. Safe to run on every start.
func (s *PostgresStore) Init(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS history_records (
		key         TEXT        NOT NULL,
		seq         BIGINT      NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		payload     JSONB       NOT NULL,
		PRIMARY KEY (key, seq)
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Append(ctx context.Context, key ports.HistoryKey, rec ports.HistoryRecord) error {
	if err := key.Validate(); err != nil {
		return err
	}

	started := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history append: %w", err)
	}
	defer tx.Rollback()

	// Bound the advisory lock wait; a stuck writer must not wedge the
	// scheduled job holding this append.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set history lock timeout: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", core.LockToken(key.String())); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqLockNotAvailable {
			return core.NewLockTimeoutError(key.String(), time.Since(started))
		}
		return fmt.Errorf("acquire history lock: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM history_records WHERE key = $1",
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
		"INSERT INTO history_records (key, seq, recorded_at, payload) VALUES ($1, $2, $3, $4)",
		rec.Key, rec.Seq, rec.Timestamp.Time(), []byte(rec.Payload)); err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history append: %w", err)
	}

	s.log.Debug().Str("key", key.String()).Int64("seq", seq).Msg("history record appended")
	return nil
}

func (s *PostgresStore) Read(ctx context.Context, key ports.HistoryKey) ([]ports.HistoryRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, recorded_at, key, payload FROM history_records WHERE key = $1 ORDER BY seq",
		key.String())
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", key, err)
	}
	defer rows.Close()

	var records []ports.HistoryRecord
	for rows.Next() {
		var rec ports.HistoryRecord
		var recordedAt time.Time
		var payload []byte
		if err := rows.Scan(&rec.Seq, &recordedAt, &rec.Key, &payload); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		rec.Timestamp = core.NewTimestamp(recordedAt)
		rec.Payload = payload
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history %s: %w", key, err)
	}
	return records, nil
}
