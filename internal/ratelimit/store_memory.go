package ratelimit

import (
	"context"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// MemoryStore keeps records in process. It is suitable for a single replica
// and for tests; multi-replica deployments need the Redis store.
type MemoryStore struct {
	records *xsync.Map[string, memoryRecord]
}

type memoryRecord struct {
	Record
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: xsync.NewMap[string, memoryRecord]()}
}

func (s *MemoryStore) Increment(_ context.Context, key string, now time.Time, window time.Duration, ceiling int) (Record, error) {
	if key == "" || window <= 0 || ceiling <= 0 {
		return Record{}, ErrInvalidArgument
	}
	rec, _ := s.records.Compute(key, func(old memoryRecord, loaded bool) (memoryRecord, xsync.ComputeOp) {
		if !loaded || !now.Before(old.expiresAt) {
			return memoryRecord{
				Record:    Record{Count: 1, WindowStart: now},
				expiresAt: now.Add(window),
			}, xsync.UpdateOp
		}
		if old.Count < ceiling {
			old.Count++
		}
		return old, xsync.UpdateOp
	})
	return rec.Record, nil
}

func (s *MemoryStore) Get(_ context.Context, key string, now time.Time) (Record, bool, error) {
	rec, ok := s.records.Load(key)
	if !ok {
		return Record{}, false, nil
	}
	if !now.Before(rec.expiresAt) {
		s.dropIfExpired(key, now)
		return Record{}, false, nil
	}
	return rec.Record, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	_, existed := s.records.LoadAndDelete(key)
	return existed, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) (int, error) {
	n := 0
	s.records.Range(func(key string, _ memoryRecord) bool {
		if _, ok := s.records.LoadAndDelete(key); ok {
			n++
		}
		return true
	})
	return n, nil
}

func (s *MemoryStore) List(_ context.Context, now time.Time, _ time.Duration) ([]Entry, error) {
	out := make([]Entry, 0)
	var expired []string
	s.records.Range(func(key string, rec memoryRecord) bool {
		if !now.Before(rec.expiresAt) {
			expired = append(expired, key)
			return true
		}
		out = append(out, Entry{
			Key:         key,
			Count:       rec.Count,
			WindowStart: rec.WindowStart,
			ExpiresAt:   rec.expiresAt,
		})
		return true
	})
	for _, key := range expired {
		s.dropIfExpired(key, now)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowStart.Before(out[j].WindowStart) })
	return out, nil
}

// dropIfExpired deletes key unless a concurrent Increment already renewed it.
func (s *MemoryStore) dropIfExpired(key string, now time.Time) {
	s.records.Compute(key, func(cur memoryRecord, loaded bool) (memoryRecord, xsync.ComputeOp) {
		if loaded && !now.Before(cur.expiresAt) {
			return cur, xsync.DeleteOp
		}
		return cur, xsync.CancelOp
	})
}
