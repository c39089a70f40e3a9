// Package history implements the append-only history store over four
// backends: JSONL files guarded by lock files, DuckDB, Postgres with
// advisory locks, and an in-memory double for tests.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"ratecast/domain/core"
	"ratecast/ports"
)

const (
	DefaultLockTimeout       = 5 * time.Second
	DefaultLockRetryInterval = 50 * time.Millisecond
	DefaultLockStaleAfter    = 30 * time.Second
)

var errLockHeld = errors.New("history lock held by another writer")

// FileStoreConfig tunes the file backend. Zero durations select the
// defaults above.
type FileStoreConfig struct {
	Dir               string
	LockTimeout       time.Duration
	LockRetryInterval time.Duration
	// LockStaleAfter is when a leftover lock from a crashed writer is
	// broken. It must dwarf the longest possible append so that a lock
	// this old can only belong to a dead process.
	LockStaleAfter time.Duration
}

// FileStore keeps one JSONL file per key. Appends take a per-key lock
// file (created O_EXCL), rewrite the record set to a temp file, and
// rename it into place; a crash mid-write leaves the previous version
// intact. Reads never touch the lock: they see the last committed
// rename.
type FileStore struct {
	dir           string
	lockTimeout   time.Duration
	retryInterval time.Duration
	staleAfter    time.Duration
	log           zerolog.Logger
}

func NewFileStore(cfg FileStoreConfig, log zerolog.Logger) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, core.NewConfigError("history.dir", "required for the file backend")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	s := &FileStore{
		dir:           cfg.Dir,
		lockTimeout:   cfg.LockTimeout,
		retryInterval: cfg.LockRetryInterval,
		staleAfter:    cfg.LockStaleAfter,
		log:           log.With().Str("component", "history_file").Logger(),
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}
	if s.retryInterval <= 0 {
		s.retryInterval = DefaultLockRetryInterval
	}
	if s.staleAfter <= 0 {
		s.staleAfter = DefaultLockStaleAfter
	}
	return s, nil
}

// Append linearizes writers on the key's lock file, then replaces the
// record set atomically. A concurrent writer's completed append is
// always observed by the read-back under the lock, so it is never lost.
func (s *FileStore) Append(ctx context.Context, key ports.HistoryKey, rec ports.HistoryRecord) error {
	if err := key.Validate(); err != nil {
		return err
	}

	release, err := s.acquireLock(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	records, err := s.readAll(key)
	if err != nil {
		return err
	}

	rec.Seq = nextSeq(records)
	if rec.Key == "" {
		rec.Key = key.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = core.Now()
	}
	records = append(records, rec)

	if err := s.replace(key, records); err != nil {
		return err
	}

	s.log.Debug().
		Str("key", key.String()).
		Int64("seq", rec.Seq).
		Int("records", len(records)).
		Msg("history record appended")
	return nil
}

// Read returns the last committed record set, oldest first. It takes no
// lock: rename is atomic, so the file is always a complete version.
func (s *FileStore) Read(ctx context.Context, key ports.HistoryKey) ([]ports.HistoryRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readAll(key)
}

func (s *FileStore) acquireLock(ctx context.Context, key ports.HistoryKey) (func(), error) {
	lockPath := s.lockPath(key)
	started := time.Now()

	attempt := func() error {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339Nano))
			f.Close()
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return backoff.Permanent(err)
		}
		s.breakStaleLock(lockPath)
		return errLockHeld
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = s.retryInterval
	strategy.MaxInterval = s.lockTimeout / 4
	strategy.MaxElapsedTime = s.lockTimeout

	if err := backoff.Retry(attempt, backoff.WithContext(strategy, ctx)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, errLockHeld) {
			return nil, core.NewLockTimeoutError(key.String(), time.Since(started))
		}
		return nil, fmt.Errorf("acquire history lock: %w", err)
	}

	return func() {
		if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Error().Err(err).Str("lock", lockPath).Msg("failed to release history lock")
		}
	}, nil
}

// breakStaleLock removes a lock older than staleAfter. Only a crashed
// writer leaves one that old; live appends hold the lock for
// milliseconds.
func (s *FileStore) breakStaleLock(lockPath string) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return
	}
	if time.Since(info.ModTime()) < s.staleAfter {
		return
	}
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return
	}
	s.log.Warn().Str("lock", lockPath).Msg("removed stale history lock")
}

func (s *FileStore) readAll(key ports.HistoryKey) ([]ports.HistoryRecord, error) {
	data, err := os.ReadFile(s.dataPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", key, err)
	}

	var records []ports.HistoryRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var rec ports.HistoryRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode history %s: %w", key, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// replace writes the full record set to a temp file in the same
// directory and renames it over the data file.
func (s *FileStore) replace(key ports.HistoryKey, records []ports.HistoryRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode history record: %w", err)
		}
	}

	tmp, err := os.CreateTemp(s.dir, s.fileName(key)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp history file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp history file: %w", err)
	}
	if err := os.Rename(tmpPath, s.dataPath(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("commit history file: %w", err)
	}
	return nil
}

func (s *FileStore) fileName(key ports.HistoryKey) string {
	return strings.ReplaceAll(key.String(), ":", "_")
}

func (s *FileStore) dataPath(key ports.HistoryKey) string {
	return filepath.Join(s.dir, s.fileName(key)+".jsonl")
}

func (s *FileStore) lockPath(key ports.HistoryKey) string {
	return filepath.Join(s.dir, s.fileName(key)+".lock")
}

func nextSeq(records []ports.HistoryRecord) int64 {
	if len(records) == 0 {
		return 1
	}
	return records[len(records)-1].Seq + 1
}
