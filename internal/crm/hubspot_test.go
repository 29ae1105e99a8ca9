package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIToken: "pat-test", BaseURL: srv.URL, Timeout: 2 * time.Second}, nil), srv
}

func TestCreateContact_Success(t *testing.T) {
	var got struct {
		Properties map[string]string `json:"properties"`
	}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/crm/v3/objects/contacts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer pat-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"12345","properties":{}}`))
	})

	res := c.CreateContact(context.Background(), Contact{
		FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", Subject: "Test", Message: "Hello",
	})
	if !res.Success || res.ContactID != "12345" || res.Message != MessageCreated {
		t.Fatalf("unexpected result %+v", res)
	}
	p := got.Properties
	if p["firstname"] != "John" || p["lastname"] != "Doe" || p["email"] != "john.doe@example.com" {
		t.Fatalf("unexpected properties %v", p)
	}
	if p["hs_lead_status"] != LeadStatusNew || p["lifecyclestage"] != LifecycleLead {
		t.Fatalf("expected lead markers, got %v", p)
	}
	if p["hs_content_membership_notes"] != "Subject: Test\n\nHello" {
		t.Fatalf("unexpected note %q", p["hs_content_membership_notes"])
	}
}

func TestCreateContact_MissingTokenMakesNoCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	res := c.CreateContact(context.Background(), Contact{Email: "a@example.com"})
	if res.Success || res.ErrorCode != ErrorCodeNoToken || res.Message != MessageNoToken {
		t.Fatalf("unexpected result %+v", res)
	}
	if called {
		t.Fatalf("expected no network call without token")
	}
}

func TestCreateContact_ErrorMessages(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "body message", status: 409, body: `{"status":"error","message":"Contact already exists. Existing ID: 77"}`, want: "Contact already exists. Existing ID: 77"},
		{name: "first error entry", status: 400, body: `{"errors":[{"message":"Property \"foo\" does not exist"},{"message":"second"}]}`, want: `Property "foo" does not exist`},
		{name: "static 401", status: 401, body: ``, want: statusMessages[401]},
		{name: "static 429", status: 429, body: `not json`, want: statusMessages[429]},
		{name: "static 500", status: 500, body: `{}`, want: statusMessages[500]},
		{name: "unknown code", status: 418, body: ``, want: "HubSpot API error (HTTP 418). Please try again later."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			res := c.CreateContact(context.Background(), Contact{Email: "a@example.com"})
			if res.Success {
				t.Fatalf("expected failure")
			}
			if res.Message != tc.want {
				t.Fatalf("message = %q, want %q", res.Message, tc.want)
			}
			if res.ErrorCode == "" {
				t.Fatalf("expected error code")
			}
		})
	}
}

func TestCreateContact_SuccessWithoutIDIsFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	})
	res := c.CreateContact(context.Background(), Contact{Email: "a@example.com"})
	if res.Success || res.ErrorCode != ErrorCodeInvalidResponse {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCreateContact_TimeoutIsResultNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{APIToken: "pat", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	res := c.CreateContact(context.Background(), Contact{Email: "a@example.com"})
	if res.Success || res.ErrorCode != ErrorCodeRequestFailed || res.Message == "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestUpdateContact(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/crm/v3/objects/contacts/42" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"42"}`))
	})
	res := c.UpdateContact(context.Background(), "42", Contact{FirstName: "Jane"})
	if !res.Success || res.Message != MessageUpdated || res.ContactID != "42" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res := c.UpdateContact(context.Background(), " ", Contact{}); res.Success {
		t.Fatalf("expected failure for empty id")
	}
}

func TestTestConnection(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	if res := c.TestConnection(context.Background()); !res.Success || res.Message != MessageConnectionOK {
		t.Fatalf("unexpected result %+v", res)
	}

	down := NewClient(Config{APIToken: "pat", BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)
	res := down.TestConnection(context.Background())
	if res.Success || !strings.HasPrefix(res.Message, "HubSpot API connection failed: ") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCreateTestContact_UsesTimestampedAddress(t *testing.T) {
	var email string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Properties map[string]string `json:"properties"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		email = body.Properties["email"]
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	})
	c.clock = func() time.Time { return time.Unix(1700000000, 0) }

	if res := c.CreateTestContact(context.Background()); !res.Success {
		t.Fatalf("unexpected result %+v", res)
	}
	if email != "test-1700000000@example.com" {
		t.Fatalf("unexpected test email %q", email)
	}
}

func TestLeadNoteTruncatesLongMessages(t *testing.T) {
	note := leadNote("S", strings.Repeat("é", maxNoteMessage+10))
	if got := len([]rune(note)); got != len([]rune("Subject: S\n\n"))+maxNoteMessage+1 {
		t.Fatalf("unexpected note length %d", got)
	}
	if leadNote("S", "") != "Subject: S" {
		t.Fatalf("unexpected note without message")
	}
}
