package reporting

import (
	"context"
	"errors"
	"math"
	"time"

	"contact-intake/internal/submissionlog"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Source lists log entries created at or after since, oldest first.
type Source interface {
	Since(ctx context.Context, since time.Time) ([]submissionlog.Entry, error)
}

type Service struct {
	src Source
}

func NewService(src Source) *Service { return &Service{src: src} }

func (s *Service) Summary(ctx context.Context, r TimeRange) (Summary, error) {
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.src == nil {
		return Summary{}, errors.New("reporting: source not configured")
	}
	r = TimeRange{From: r.From.UTC(), To: r.To.UTC()}

	rows, err := s.src.Since(ctx, r.From)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Range: r, Daily: []DailyCount{}}
	index := map[string]int{}
	for _, e := range rows {
		if !e.CreatedAt.Before(r.To) {
			continue
		}
		day := e.CreatedAt.UTC().Format(time.DateOnly)
		i, ok := index[day]
		if !ok {
			i = len(out.Daily)
			index[day] = i
			out.Daily = append(out.Daily, DailyCount{Date: day})
		}

		out.Total++
		out.Daily[i].Total++
		switch e.Result {
		case submissionlog.ResultSuccess:
			out.Successful++
			out.Daily[i].Successful++
		case submissionlog.ResultFailed:
			out.Failed++
			out.Daily[i].Failed++
		}
	}
	out.SuccessRate = successRate(out.Successful, out.Total)
	return out, nil
}

func successRate(ok, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(ok)/float64(total)*1000) / 10
}
