// Package crm delivers leads to HubSpot.
package crm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"contact-intake/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.hubapi.com"
	DefaultTimeout = 30 * time.Second

	contactsPath    = "/crm/v3/objects/contacts"
	maxResponseBody = 1 << 20
)

type Config struct {
	APIToken string
	BaseURL  string
	Timeout  time.Duration
}

// Client calls the HubSpot CRM v3 API. It never retries; a failed call is
// reported as a failed Result so the request path stays bounded.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
	clock   func() time.Time
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		log:     log,
		clock:   time.Now,
	}
}

// Configured reports whether an API token is present.
func (c *Client) Configured() bool { return c.token != "" }

// CreateContact creates a lead. Success requires a 2xx carrying an id.
func (c *Client) CreateContact(ctx context.Context, contact Contact) Result {
	if !c.Configured() {
		return noToken()
	}
	body := map[string]any{"properties": contactProperties(contact)}

	status, raw, err := c.do(ctx, http.MethodPost, contactsPath, body)
	if err != nil {
		return transportFailure(err)
	}
	if status < 200 || status > 299 {
		return apiFailure(status, raw)
	}
	id, err := parseID(raw)
	if err != nil {
		return Result{Success: false, Message: MessageMissingContactID, ErrorCode: ErrorCodeInvalidResponse}
	}
	return Result{Success: true, ContactID: id, Message: MessageCreated}
}

// UpdateContact patches an existing contact's properties.
func (c *Client) UpdateContact(ctx context.Context, id string, contact Contact) Result {
	if !c.Configured() {
		return noToken()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Result{Success: false, Message: "Contact id is required.", ErrorCode: ErrorCodeInvalidResponse}
	}
	body := map[string]any{"properties": contactProperties(contact)}

	status, raw, err := c.do(ctx, http.MethodPatch, contactsPath+"/"+url.PathEscape(id), body)
	if err != nil {
		return transportFailure(err)
	}
	if status != http.StatusOK {
		return apiFailure(status, raw)
	}
	return Result{Success: true, ContactID: id, Message: MessageUpdated}
}

// TestConnection performs a read-only list call; no data is created.
func (c *Client) TestConnection(ctx context.Context) Result {
	if !c.Configured() {
		return noToken()
	}
	status, raw, err := c.do(ctx, http.MethodGet, contactsPath+"?limit=1", nil)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf(messageConnectionFailedF, err.Error()), ErrorCode: ErrorCodeRequestFailed}
	}
	if status != http.StatusOK {
		return apiFailure(status, raw)
	}
	return Result{Success: true, Message: MessageConnectionOK}
}

// CreateTestContact creates a throwaway contact to prove write access.
func (c *Client) CreateTestContact(ctx context.Context) Result {
	ts := c.clock().Unix()
	return c.CreateContact(ctx, Contact{
		FirstName: "Test",
		LastName:  "Contact",
		Email:     fmt.Sprintf("test-%d@example.com", ts),
		Subject:   "Connection test",
		Message:   "Created by the contact intake connection test.",
	})
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "hubspot request failed", "method", method, "path", path, "err", err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, err
	}
	c.log.DebugContext(ctx, "hubspot request", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return resp.StatusCode, raw, nil
}

// contactProperties maps form data onto HubSpot contact properties.
func contactProperties(c Contact) map[string]string {
	props := map[string]string{
		"firstname":                   c.FirstName,
		"lastname":                    c.LastName,
		"email":                       c.Email,
		"hs_lead_status":              LeadStatusNew,
		"lifecyclestage":              LifecycleLead,
		"hs_content_membership_notes": leadNote(c.Subject, c.Message),
	}
	return props
}

func leadNote(subject, message string) string {
	note := "Subject: " + subject
	if message == "" {
		return note
	}
	if utf8.RuneCountInString(message) > maxNoteMessage {
		r := []rune(message)
		message = string(r[:maxNoteMessage]) + "…"
	}
	return note + "\n\n" + message
}

type idResponse struct {
	ID string `json:"id"`
}

func parseID(raw []byte) (string, error) {
	var r idResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", err
	}
	if strings.TrimSpace(r.ID) == "" {
		return "", fmt.Errorf("crm: response has no id")
	}
	return r.ID, nil
}

func noToken() Result {
	return Result{Success: false, Message: MessageNoToken, ErrorCode: ErrorCodeNoToken}
}

func transportFailure(err error) Result {
	return Result{Success: false, Message: err.Error(), ErrorCode: ErrorCodeRequestFailed}
}

func apiFailure(status int, raw []byte) Result {
	return Result{Success: false, Message: ErrorMessage(status, raw), ErrorCode: strconv.Itoa(status)}
}
