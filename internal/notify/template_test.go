package notify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"contact-intake/internal/crm"
)

func TestRender_SubstitutesAndEscapes(t *testing.T) {
	v := Values{TokenFirstName: "<b>Jo</b>", TokenEmail: "jo@example.com"}
	got := Render("Hi {{first_name}} ({{ email }})", v, HTMLEscape)
	want := "Hi &lt;b&gt;Jo&lt;/b&gt; (jo@example.com)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRender_ValuesAreNotRescanned(t *testing.T) {
	v := Values{TokenMessage: "{{email}} {{#if email}}x{{/if}}", TokenEmail: "secret@example.com"}
	got := Render("{{message}}", v, PlainEscape)
	if got != "{{email}} {{#if email}}x{{/if}}" {
		t.Fatalf("user input was expanded: %q", got)
	}
}

func TestRender_Conditionals(t *testing.T) {
	tpl := "A{{#if crm_contact_id}}[id={{crm_contact_id}}]{{/if}}B{{#if crm_error}}[err]{{/if}}C"
	cases := []struct {
		v    Values
		want string
	}{
		{Values{TokenCRMContactID: "42"}, "A[id=42]BC"},
		{Values{TokenCRMError: "boom"}, "AB[err]C"},
		{Values{TokenCRMContactID: "  "}, "ABC"},
		{Values{}, "ABC"},
	}
	for _, tc := range cases {
		if got := Render(tpl, tc.v, PlainEscape); got != tc.want {
			t.Fatalf("values %v: got %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestRender_MalformedInputIsLiteral(t *testing.T) {
	cases := map[string]string{
		"{{unknown}} stays":       "{{unknown}} stays",
		"open {{first_name":       "open {{first_name",
		"{{#if email}}no close":   "{{#if email}}no close",
		"{{#if email}}{{#if x}}y": "{{#if email}}{{#if x}}y",
	}
	for tpl, want := range cases {
		if got := Render(tpl, Values{TokenEmail: "e"}, PlainEscape); got != want {
			t.Fatalf("template %q: got %q, want %q", tpl, got, want)
		}
	}
}

func TestEscapers(t *testing.T) {
	if got := PlainEscape("a\x00b\r\nc\td"); got != "ab\nc\td" {
		t.Fatalf("plain: %q", got)
	}
	if got := HeaderEscape("Hello\r\nBcc: x@example.com"); got != "Hello Bcc: x@example.com" {
		t.Fatalf("header: %q", got)
	}
	if got := HTMLEscape("a & b\nc"); got != "a &amp; b<br>\nc" {
		t.Fatalf("html: %q", got)
	}
}

func TestValuesFor(t *testing.T) {
	c := crm.Contact{FirstName: "John", Email: "john@example.com"}
	ok := ValuesFor(c, crm.Result{Success: true, ContactID: "7", Message: "created"})
	if ok[TokenCRMStatus] != StatusSuccess || ok[TokenCRMContactID] != "7" || ok[TokenCRMError] != "" {
		t.Fatalf("unexpected success values: %v", ok)
	}
	failed := ValuesFor(c, crm.Result{Message: "HubSpot API token is not configured."})
	if failed[TokenCRMStatus] != StatusFailed || failed[TokenCRMError] == "" {
		t.Fatalf("unexpected failure values: %v", failed)
	}
}

func TestDefaultBody_RendersCRMSections(t *testing.T) {
	c := crm.Contact{FirstName: "John", LastName: "Doe", Email: "john@example.com", Subject: "Hi", Message: "Hello"}
	body := Render(DefaultBody, ValuesFor(c, crm.Result{Success: true, ContactID: "99"}), HTMLEscape)
	if !strings.Contains(body, "CRM Contact ID:</strong> 99") || strings.Contains(body, "CRM Error") {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestLoadTemplates(t *testing.T) {
	d, err := LoadTemplates("")
	if err != nil || d.Subject != DefaultSubject {
		t.Fatalf("expected defaults, got %+v %v", d, err)
	}

	path := filepath.Join(t.TempDir(), "templates.yaml")
	if err := os.WriteFile(path, []byte("subject: \"Lead from {{first_name}}\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	tpl, err := LoadTemplates(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tpl.Subject != "Lead from {{first_name}}" || tpl.Body != DefaultBody || tpl.Alert != DefaultAlert {
		t.Fatalf("unexpected templates: %+v", tpl)
	}

	if _, err := LoadTemplates(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(bad, []byte("subject: [unterminated"), 0o600)
	if _, err := LoadTemplates(bad); err == nil {
		t.Fatalf("expected parse error")
	}
}
