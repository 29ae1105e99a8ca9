package submissionlog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries []Entry

	// FailInserts makes Insert return this error.
	FailInserts error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(_ context.Context, e Entry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInserts != nil {
		return 0, r.FailInserts
	}
	r.nextID++
	e.ID = r.nextID
	r.entries = append(r.entries, e)
	return e.ID, nil
}

func (r *MemoryRepo) List(_ context.Context, q Query) ([]Entry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]Entry, 0, len(r.entries))
	needle := strings.ToLower(q.Search)
	for _, e := range r.entries {
		if needle == "" || matchesSearch(e, needle) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := q.offset()
	if start >= total {
		return []Entry{}, total, nil
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return append([]Entry(nil), matched[start:end]...), total, nil
}

func (r *MemoryRepo) Get(_ context.Context, id int64) (Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (r *MemoryRepo) ListSince(_ context.Context, since time.Time) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0)
	for _, e := range r.entries {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	var n int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return n, nil
}

// Entries returns a copy of everything stored.
func (r *MemoryRepo) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func matchesSearch(e Entry, needle string) bool {
	fields := []string{e.Email, string(e.Result), deref(e.CRMContactID), deref(e.ErrorMessage)}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
