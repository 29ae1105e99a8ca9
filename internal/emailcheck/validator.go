// Package emailcheck decides whether an address is worth sending to the CRM.
package emailcheck

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"contact-intake/pkg/logger"

	"golang.org/x/net/idna"
)

const (
	MessageValid        = "Email address is valid."
	MessageRequired     = "Email address is required."
	MessageInvalidShape = "Please enter a valid email address."
	MessageTooLong      = "Email address is too long."
	MessageDots         = "Email address contains misplaced dots."
	MessageBadDomain    = "Email domain is not valid."
	MessageNoMailHost   = "Email domain does not exist or is not configured to receive emails."
)

const (
	maxAddressLen = 254
	maxLocalLen   = 64
	maxDomainLen  = 253
)

var (
	localPartRE = regexp.MustCompile("^[a-zA-Z0-9!#$%&'*+/=?^_`{|}~.-]+$")
	domainRE    = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)
)

// Result is binary; there is no warning state.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	// Normalized is the trimmed, lower-cased address (set when Valid).
	Normalized string `json:"normalized,omitempty"`
}

type Validator struct {
	dns     *DomainChecker
	timeout time.Duration
	log     *slog.Logger
}

// NewValidator builds a validator. dns may be nil, in which case the DNS step
// is skipped even when requested.
func NewValidator(dns *DomainChecker, timeout time.Duration, log *slog.Logger) *Validator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Validator{dns: dns, timeout: timeout, log: log}
}

// Validate runs each step as a hard gate and reports the first failure.
func (v *Validator) Validate(ctx context.Context, email string, checkDNS bool) Result {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return invalid(MessageRequired)
	}

	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') || at == len(email)-1 {
		return invalid(MessageInvalidShape)
	}
	local, domain := email[:at], email[at+1:]
	if !localPartRE.MatchString(local) || strings.ContainsAny(domain, " \t\r\n") {
		return invalid(MessageInvalidShape)
	}

	if len(email) > maxAddressLen || len(local) > maxLocalLen || len(domain) > maxDomainLen {
		return invalid(MessageTooLong)
	}

	if misplacedDots(local) || misplacedDots(domain) {
		return invalid(MessageDots)
	}

	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil || len(asciiDomain) > maxDomainLen || !domainRE.MatchString(asciiDomain) {
		return invalid(MessageBadDomain)
	}

	if checkDNS && v.dns != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()
		ok, err := v.dns.Exists(lookupCtx, asciiDomain)
		if err != nil {
			// Resolver trouble says nothing about the address.
			v.log.WarnContext(ctx, "email domain lookup failed, accepting address", "domain", asciiDomain, "err", err)
		} else if !ok {
			return invalid(MessageNoMailHost)
		}
	}

	return Result{Valid: true, Message: MessageValid, Normalized: email}
}

func misplacedDots(s string) bool {
	return strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") || strings.Contains(s, "..")
}

func invalid(msg string) Result {
	return Result{Valid: false, Message: msg}
}
