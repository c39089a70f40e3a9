package history

import (
	"context"
	"sync"

	"ratecast/domain/core"
	"ratecast/ports"
)

// MemoryStore is the in-process backend: goroutine-safe, nothing
// persisted. Used by tests and by one-shot runs that do not care about
// history surviving the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]ports.HistoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]ports.HistoryRecord)}
}

func (s *MemoryStore) Append(ctx context.Context, key ports.HistoryKey, rec ports.HistoryRecord) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.records[key.String()]
	rec.Seq = nextSeq(existing)
	if rec.Key == "" {
		rec.Key = key.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = core.Now()
	}
	s.records[key.String()] = append(existing, rec)
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, key ports.HistoryKey) ([]ports.HistoryRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := s.records[key.String()]
	out := make([]ports.HistoryRecord, len(existing))
	copy(out, existing)
	return out, nil
}
