package validation

import (
	"context"
	"strings"
	"testing"

	"contact-intake/internal/emailcheck"
)

func validValues() map[string]string {
	return map[string]string{
		FieldFirstName:     "John",
		FieldLastName:      "Doe",
		FieldEmail:         "john.doe@example.com",
		FieldSubject:       "Test",
		FieldMessage:       "Hello",
		FieldFormTimestamp: "1700000000",
	}
}

func newValidator() *Validator {
	return NewValidator(nil, emailcheck.NewValidator(nil, 0, nil), false)
}

func TestValidateAll_AcceptsValidSubmission(t *testing.T) {
	if errs := newValidator().ValidateAll(context.Background(), validValues()); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidateAll_AggregatesEveryInvalidField(t *testing.T) {
	vals := validValues()
	vals[FieldFirstName] = "   "
	vals[FieldEmail] = "not-an-email"
	vals[FieldMessage] = strings.Repeat("x", MessageMaxLength+1)
	vals[FieldFormTimestamp] = "abc"

	errs := newValidator().ValidateAll(context.Background(), vals)
	if len(errs) != 4 {
		t.Fatalf("expected 4 errors, got %d: %v", len(errs), errs)
	}
	by := errs.ByField()
	if by[FieldFirstName] != "First name is required and must be a non-empty string." {
		t.Fatalf("unexpected first_name message %q", by[FieldFirstName])
	}
	if by[FieldEmail] != emailcheck.MessageInvalidShape {
		t.Fatalf("unexpected email message %q", by[FieldEmail])
	}
	if by[FieldMessage] != "Message must be 5000 characters or less." {
		t.Fatalf("unexpected message message %q", by[FieldMessage])
	}
	if by[FieldFormTimestamp] != "Form timestamp is required and must be a positive number." {
		t.Fatalf("unexpected timestamp message %q", by[FieldFormTimestamp])
	}
	if errs[0].Field != FieldFirstName {
		t.Fatalf("expected stable field order, got %q first", errs[0].Field)
	}
}

func TestValidateAll_RejectsControlOnlyText(t *testing.T) {
	v := newValidator()
	vals := validValues()
	vals[FieldFirstName] = "\x00\x01"
	vals[FieldSubject] = " \x07 "
	vals[FieldMessage] = "\r\n\x1b"

	by := v.ValidateAll(context.Background(), vals).ByField()
	for _, f := range []string{FieldFirstName, FieldSubject, FieldMessage} {
		if by[f] == "" {
			t.Fatalf("expected %s to be rejected, got %v", f, by)
		}
	}

	// Whatever passes validation stays non-empty after Sanitize.
	vals = validValues()
	vals[FieldLastName] = "\x00Doe\x01"
	if errs := v.ValidateAll(context.Background(), vals); errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got := v.Sanitize(vals)[FieldLastName]; got != "Doe" {
		t.Fatalf("unexpected sanitized last name %q", got)
	}
}

func TestValidateField_Lengths(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	if fe := v.ValidateField(ctx, FieldSubject, strings.Repeat("s", DefaultMaxLength)); fe != nil {
		t.Fatalf("expected 255 chars ok, got %v", fe)
	}
	if fe := v.ValidateField(ctx, FieldSubject, strings.Repeat("s", DefaultMaxLength+1)); fe == nil {
		t.Fatalf("expected 256 chars rejected")
	}
	// Length counts characters, not bytes.
	if fe := v.ValidateField(ctx, FieldLastName, strings.Repeat("ü", DefaultMaxLength)); fe != nil {
		t.Fatalf("expected multibyte name ok, got %v", fe)
	}
	if fe := v.ValidateField(ctx, FieldMessage, strings.Repeat("m", MessageMaxLength)); fe != nil {
		t.Fatalf("expected 5000 chars ok, got %v", fe)
	}
}

func TestValidateField_Timestamp(t *testing.T) {
	v := newValidator()
	for _, bad := range []string{"", "0", "-5", "12.5", "soon"} {
		if fe := v.ValidateField(context.Background(), FieldFormTimestamp, bad); fe == nil {
			t.Fatalf("expected %q rejected", bad)
		}
	}
	if fe := v.ValidateField(context.Background(), FieldFormTimestamp, " 42 "); fe != nil {
		t.Fatalf("expected 42 accepted, got %v", fe)
	}
}

func TestValidateField_Unknown(t *testing.T) {
	if fe := newValidator().ValidateField(context.Background(), "phone", "1"); fe == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestSanitize(t *testing.T) {
	out := newValidator().Sanitize(map[string]string{
		FieldFirstName: "  Jo\x00hn\n ",
		FieldEmail:     " John@Example.COM ",
		FieldSubject:   "line one\r\nline two",
		FieldMessage:   "para one\r\n\r\npara\ttwo\x07",
		"website":      "ignored",
	})
	if out[FieldFirstName] != "John" {
		t.Fatalf("unexpected first name %q", out[FieldFirstName])
	}
	if out[FieldEmail] != "john@example.com" {
		t.Fatalf("unexpected email %q", out[FieldEmail])
	}
	if out[FieldSubject] != "line one line two" {
		t.Fatalf("unexpected subject %q", out[FieldSubject])
	}
	if out[FieldMessage] != "para one\n\npara\ttwo" {
		t.Fatalf("unexpected message %q", out[FieldMessage])
	}
	if _, ok := out["website"]; ok {
		t.Fatalf("expected unruled field dropped")
	}
}

func TestErrors_Error(t *testing.T) {
	errs := Errors{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}
	if errs.Error() != "validation failed: a: x; b: y" {
		t.Fatalf("unexpected %q", errs.Error())
	}
}
