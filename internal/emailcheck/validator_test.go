package emailcheck

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

type staticResolver struct {
	mu    sync.Mutex
	mx    map[string][]*net.MX
	hosts map[string][]string
	fail  error
	calls int
}

func (r *staticResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail != nil {
		return nil, r.fail
	}
	if mx, ok := r.mx[name]; ok {
		return mx, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func (r *staticResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	if a, ok := r.hosts[host]; ok {
		return a, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func newResolver() *staticResolver {
	return &staticResolver{
		mx:    map[string][]*net.MX{"example.com": {{Host: "mx.example.com.", Pref: 10}}},
		hosts: map[string][]string{"a-only.example": {"93.184.216.34"}},
	}
}

func TestValidate_Syntax(t *testing.T) {
	v := NewValidator(nil, 0, nil)
	cases := []struct {
		in   string
		want string
	}{
		{in: "user.name@domain.co.uk", want: MessageValid},
		{in: "  John.Doe@Example.COM ", want: MessageValid},
		{in: "o'reilly+tag@example.com", want: MessageValid},
		{in: "", want: MessageRequired},
		{in: "   ", want: MessageRequired},
		{in: "plainaddress", want: MessageInvalidShape},
		{in: "@example.com", want: MessageInvalidShape},
		{in: "user@", want: MessageInvalidShape},
		{in: "a@b@example.com", want: MessageInvalidShape},
		{in: "us er@example.com", want: MessageInvalidShape},
		{in: "user..name@example.com", want: MessageDots},
		{in: ".user@example.com", want: MessageDots},
		{in: "user.@example.com", want: MessageDots},
		{in: "user@example.com.", want: MessageDots},
		{in: "user@.example.com", want: MessageDots},
		{in: "user@example..com", want: MessageDots},
		{in: "user@-example.com", want: MessageBadDomain},
		{in: "user@example-.com", want: MessageBadDomain},
		{in: "user@exa_mple.com", want: MessageBadDomain},
		{in: strings.Repeat("a", 65) + "@example.com", want: MessageTooLong},
		{in: "a@" + strings.Repeat("b", 250) + ".com", want: MessageTooLong},
	}
	for _, tc := range cases {
		got := v.Validate(context.Background(), tc.in, false)
		if got.Message != tc.want {
			t.Fatalf("Validate(%q) = %q, want %q", tc.in, got.Message, tc.want)
		}
		if got.Valid != (tc.want == MessageValid) {
			t.Fatalf("Validate(%q) valid=%v", tc.in, got.Valid)
		}
	}
}

func TestValidate_NormalizesAddress(t *testing.T) {
	v := NewValidator(nil, 0, nil)
	got := v.Validate(context.Background(), "  John.Doe@Example.COM ", false)
	if got.Normalized != "john.doe@example.com" {
		t.Fatalf("unexpected normalized address %q", got.Normalized)
	}
}

func TestValidate_InternationalDomain(t *testing.T) {
	r := newResolver()
	r.mx["xn--bcher-kva.de"] = []*net.MX{{Host: "mx.xn--bcher-kva.de.", Pref: 1}}
	dc, err := NewDomainChecker(r, time.Minute)
	if err != nil {
		t.Fatalf("checker: %v", err)
	}
	defer dc.Close()

	v := NewValidator(dc, time.Second, nil)
	if got := v.Validate(context.Background(), "kontakt@bücher.de", true); !got.Valid {
		t.Fatalf("expected idn domain to validate, got %+v", got)
	}
}

func TestValidate_DNS(t *testing.T) {
	r := newResolver()
	dc, err := NewDomainChecker(r, time.Minute)
	if err != nil {
		t.Fatalf("checker: %v", err)
	}
	defer dc.Close()
	v := NewValidator(dc, time.Second, nil)

	if got := v.Validate(context.Background(), "john@example.com", true); !got.Valid {
		t.Fatalf("expected mx domain valid, got %+v", got)
	}
	if got := v.Validate(context.Background(), "john@a-only.example", true); !got.Valid {
		t.Fatalf("expected address fallback valid, got %+v", got)
	}
	if got := v.Validate(context.Background(), "john@nowhere.invalid", true); got.Valid || got.Message != MessageNoMailHost {
		t.Fatalf("expected no mail host, got %+v", got)
	}
	// Skipped when not requested.
	if got := v.Validate(context.Background(), "john@nowhere.invalid", false); !got.Valid {
		t.Fatalf("expected valid without dns check, got %+v", got)
	}
}

func TestDomainChecker_CachesDefinitiveAnswers(t *testing.T) {
	r := newResolver()
	dc, err := NewDomainChecker(r, time.Minute)
	if err != nil {
		t.Fatalf("checker: %v", err)
	}
	defer dc.Close()

	for i := 0; i < 3; i++ {
		ok, err := dc.Exists(context.Background(), "example.com")
		if err != nil || !ok {
			t.Fatalf("unexpected result %v %v", ok, err)
		}
	}
	if r.calls != 1 {
		t.Fatalf("expected one resolver call, got %d", r.calls)
	}
}

func TestDomainChecker_ResolverFailureNotCachedAndFailsOpen(t *testing.T) {
	r := newResolver()
	r.fail = &net.DNSError{Err: "i/o timeout", Name: "example.com", IsTimeout: true}
	dc, err := NewDomainChecker(r, time.Minute)
	if err != nil {
		t.Fatalf("checker: %v", err)
	}
	defer dc.Close()

	if _, err := dc.Exists(context.Background(), "example.com"); err == nil {
		t.Fatalf("expected resolver error")
	}

	v := NewValidator(dc, time.Second, nil)
	if got := v.Validate(context.Background(), "john@example.com", true); !got.Valid {
		t.Fatalf("expected transient dns failure to accept, got %+v", got)
	}

	r.fail = nil
	before := r.calls
	if ok, err := dc.Exists(context.Background(), "example.com"); err != nil || !ok {
		t.Fatalf("expected recovery, got %v %v", ok, err)
	}
	if r.calls != before+1 {
		t.Fatalf("expected failure not to be cached")
	}
}

func TestIsNotFound(t *testing.T) {
	if isNotFound(errors.New("boom")) {
		t.Fatalf("plain error is not a not-found")
	}
	if !isNotFound(&net.DNSError{IsNotFound: true}) {
		t.Fatalf("expected not-found")
	}
}
