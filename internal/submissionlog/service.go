package submissionlog

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Repository is the persistence contract for the submission log.
// There is no Update; DeleteBefore exists only for retention.
type Repository interface {
	Insert(ctx context.Context, e Entry) (int64, error)
	List(ctx context.Context, q Query) ([]Entry, int, error)
	Get(ctx context.Context, id int64) (Entry, bool, error)
	ListSince(ctx context.Context, since time.Time) ([]Entry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	ErrInvalidEntry      = errors.New("submissionlog: invalid entry")
	ErrNotFound          = errors.New("submissionlog: entry not found")
	ErrRepoNotConfigured = errors.New("submissionlog: repository not configured")
)

// Service is the submission log of record.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WithClock replaces the time source; used by tests and rotation.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Append inserts one entry and returns its id. Callers on the request path
// treat failures as best-effort.
func (s *Service) Append(ctx context.Context, e Entry) (int64, error) {
	if s.repo == nil {
		return 0, ErrRepoNotConfigured
	}
	if !e.Result.Valid() || strings.TrimSpace(e.Email) == "" {
		return 0, ErrInvalidEntry
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock()
	}
	// Postgres keeps microseconds; truncate so both backends agree.
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)
	if e.FormData == "" {
		e.FormData = "{}"
	}
	return s.repo.Insert(ctx, e)
}

// Query returns one page with totals. Search is a case-insensitive substring
// match over email, result, CRM contact id and error message.
func (s *Service) Query(ctx context.Context, q Query) (Page, error) {
	if s.repo == nil {
		return Page{}, ErrRepoNotConfigured
	}
	q = q.normalized()
	q.Search = strings.TrimSpace(q.Search)

	entries, total, err := s.repo.List(ctx, q)
	if err != nil {
		return Page{}, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Page{
		Entries:  entries,
		Total:    total,
		Pages:    pageCount(total, q.PageSize),
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	if s.repo == nil {
		return Entry{}, ErrRepoNotConfigured
	}
	e, ok, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Since lists entries created at or after since, oldest first.
func (s *Service) Since(ctx context.Context, since time.Time) ([]Entry, error) {
	if s.repo == nil {
		return nil, ErrRepoNotConfigured
	}
	return s.repo.ListSince(ctx, since.UTC())
}

// Rotate deletes entries older than olderThanDays and returns the count.
func (s *Service) Rotate(ctx context.Context, olderThanDays int) (int64, error) {
	if s.repo == nil {
		return 0, ErrRepoNotConfigured
	}
	if olderThanDays <= 0 {
		return 0, ErrInvalidEntry
	}
	cutoff := s.clock().UTC().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	return s.repo.DeleteBefore(ctx, cutoff)
}
