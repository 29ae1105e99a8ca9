package submissionlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Rotator deletes entries past the retention window on a cron schedule.
type Rotator struct {
	svc     *Service
	days    int
	log     *slog.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewRotator registers the rotation job. schedule uses standard cron syntax
// or descriptors such as "@daily".
func NewRotator(svc *Service, days int, schedule string, log *slog.Logger) (*Rotator, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Rotator{
		svc:     svc,
		days:    days,
		log:     log,
		cron:    cron.New(),
		timeout: time.Minute,
	}
	if _, err := r.cron.AddFunc(schedule, r.runOnce); err != nil {
		return nil, fmt.Errorf("submissionlog: invalid rotation schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Rotator) Start() { r.cron.Start() }

// Stop waits for a running rotation to finish.
func (r *Rotator) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Rotator) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	n, err := r.svc.Rotate(ctx, r.days)
	if err != nil {
		r.log.Error("submission log rotation failed", "err", err, "retention_days", r.days)
		return
	}
	r.log.Info("submission log rotated", "deleted", n, "retention_days", r.days)
}
