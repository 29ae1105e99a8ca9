package validation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"contact-intake/internal/emailcheck"
)

var ErrUnknownField = errors.New("validation: unknown field")

// EmailChecker is satisfied by *emailcheck.Validator.
type EmailChecker interface {
	Validate(ctx context.Context, email string, checkDNS bool) emailcheck.Result
}

// FieldError is one field's failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

// Errors aggregates every failing field of one submission.
type Errors []*FieldError

func (es Errors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ByField flattens the errors for JSON responses.
func (es Errors) ByField() map[string]string {
	out := make(map[string]string, len(es))
	for _, e := range es {
		out[e.Field] = e.Message
	}
	return out
}

type Validator struct {
	rules    map[string]Rule
	order    []string
	email    EmailChecker
	checkDNS bool
}

// NewValidator uses DefaultRules when rules is nil.
func NewValidator(rules map[string]Rule, email EmailChecker, checkDNS bool) *Validator {
	if rules == nil {
		rules = DefaultRules()
	}
	order := make([]string, 0, len(rules))
	for _, name := range FieldOrder {
		if _, ok := rules[name]; ok {
			order = append(order, name)
		}
	}
	var extra []string
	for name := range rules {
		if !slices.Contains(order, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	return &Validator{rules: rules, order: order, email: email, checkDNS: checkDNS}
}

// ValidateField checks one value in isolation. It returns nil when the value
// is acceptable.
func (v *Validator) ValidateField(ctx context.Context, name, value string) *FieldError {
	rule, ok := v.rules[name]
	if !ok {
		return &FieldError{Field: name, Message: ErrUnknownField.Error()}
	}
	value = strings.TrimSpace(value)

	switch rule.Kind {
	case KindTimestamp:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n <= 0 {
			return &FieldError{Field: name, Message: fmt.Sprintf("%s is required and must be a positive number.", rule.Label)}
		}
		return nil

	case KindEmail:
		if value == "" {
			if rule.Required {
				return &FieldError{Field: name, Message: emailcheck.MessageRequired}
			}
			return nil
		}
		if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
			return &FieldError{Field: name, Message: fmt.Sprintf("%s must be %d characters or less.", rule.Label, rule.MaxLength)}
		}
		if v.email != nil {
			if res := v.email.Validate(ctx, value, v.checkDNS); !res.Valid {
				return &FieldError{Field: name, Message: res.Message}
			}
		}
		return nil

	default:
		// Checked on the value Sanitize will keep.
		value = stripControl(value, rule.Multiline)
		if value == "" {
			if rule.Required {
				return &FieldError{Field: name, Message: fmt.Sprintf("%s is required and must be a non-empty string.", rule.Label)}
			}
			return nil
		}
		if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
			return &FieldError{Field: name, Message: fmt.Sprintf("%s must be %d characters or less.", rule.Label, rule.MaxLength)}
		}
		return nil
	}
}

// ValidateAll checks every ruled field and returns all failures together,
// or nil.
func (v *Validator) ValidateAll(ctx context.Context, values map[string]string) Errors {
	var errs Errors
	for _, name := range v.order {
		if fe := v.ValidateField(ctx, name, values[name]); fe != nil {
			errs = append(errs, fe)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Sanitize normalizes accepted values: trims, lower-cases the email, drops
// control characters and folds line breaks in single-line fields. Markup is
// left alone here and escaped at render time.
func (v *Validator) Sanitize(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for name, raw := range values {
		rule, ok := v.rules[name]
		if !ok {
			continue
		}
		val := strings.TrimSpace(raw)
		switch rule.Kind {
		case KindEmail:
			val = strings.ToLower(val)
		case KindText:
			val = stripControl(val, rule.Multiline)
		}
		out[name] = val
	}
	return out
}

func stripControl(s string, multiline bool) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			if multiline {
				b.WriteRune(r)
			} else {
				b.WriteRune(' ')
			}
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
