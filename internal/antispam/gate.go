package antispam

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"contact-intake/internal/ratelimit"
	"contact-intake/pkg/logger"
)

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonHoneypotFilled   Reason = "honeypot_filled"
	ReasonTooFast          Reason = "too_fast"
	ReasonExpired          Reason = "expired"
	ReasonMissingTimestamp Reason = "missing_timestamp"
	ReasonRateLimited      Reason = "rate_limited"
)

const (
	MessagePassed           = "All antispam checks passed."
	MessageHoneypot         = "Spam detected: honeypot field filled."
	MessageMissingTimestamp = "Form timestamp is missing."
	MessageTooFast          = "Form submitted too quickly. Please take your time to fill out the form."
	MessageExpired          = "Form session has expired. Please refresh the page and try again."
)

const (
	DefaultMinElapsed = 3 * time.Second
	DefaultMaxElapsed = time.Hour
)

// Verdict is produced per submission and never persisted.
type Verdict struct {
	Valid   bool   `json:"valid"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message"`
}

// Input carries the fields the gate looks at. FormTimestamp <= 0 means missing.
type Input struct {
	Website       string
	FormTimestamp int64
}

// RateChecker is satisfied by *ratelimit.Limiter.
type RateChecker interface {
	CheckAndIncrement(ctx context.Context, ip string) (ratelimit.Decision, error)
}

type Gate struct {
	limiter    RateChecker
	minElapsed time.Duration
	maxElapsed time.Duration
	log        *slog.Logger
}

type Config struct {
	MinElapsed time.Duration
	MaxElapsed time.Duration
}

func NewGate(limiter RateChecker, cfg Config, log *slog.Logger) *Gate {
	if cfg.MinElapsed <= 0 {
		cfg.MinElapsed = DefaultMinElapsed
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = DefaultMaxElapsed
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Gate{limiter: limiter, minElapsed: cfg.MinElapsed, maxElapsed: cfg.MaxElapsed, log: log}
}

// Evaluate runs bypass, honeypot, timing and rate-limit checks in that order;
// the first failure wins. The rate limiter is only consulted (and only
// charged) once every cheaper check has passed.
//
// A rate-limit store outage lets the submission through.
func (g *Gate) Evaluate(ctx context.Context, in Input, now time.Time, clientIP string, bypass bool) Verdict {
	if bypass {
		return pass()
	}

	if strings.TrimSpace(in.Website) != "" {
		return reject(ReasonHoneypotFilled, MessageHoneypot)
	}

	if in.FormTimestamp <= 0 {
		return reject(ReasonMissingTimestamp, MessageMissingTimestamp)
	}
	// Whole seconds, matching the resolution of the client timestamp. Bounds
	// are checked on the raw seconds first so the Duration cannot overflow.
	secs := now.Unix() - in.FormTimestamp
	if secs < 0 {
		return reject(ReasonTooFast, MessageTooFast)
	}
	if secs > maxElapsedSeconds {
		return reject(ReasonExpired, MessageExpired)
	}
	elapsed := time.Duration(secs) * time.Second
	if elapsed < g.minElapsed {
		return reject(ReasonTooFast, MessageTooFast)
	}
	if elapsed > g.maxElapsed {
		return reject(ReasonExpired, MessageExpired)
	}

	if g.limiter != nil {
		d, err := g.limiter.CheckAndIncrement(ctx, clientIP)
		if err != nil {
			g.log.WarnContext(ctx, "rate limit check failed, allowing submission", "err", err)
			return pass()
		}
		if !d.Allowed {
			return reject(ReasonRateLimited, ratelimit.MessageExceeded)
		}
	}

	return pass()
}

// maxElapsedSeconds is the largest second count representable as a Duration.
const maxElapsedSeconds = int64(math.MaxInt64 / int64(time.Second))

func pass() Verdict {
	return Verdict{Valid: true, Reason: ReasonNone, Message: MessagePassed}
}

func reject(r Reason, msg string) Verdict {
	return Verdict{Valid: false, Reason: r, Message: msg}
}
