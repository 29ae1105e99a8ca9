package notify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"contact-intake/internal/crm"
	"contact-intake/pkg/logger"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

var testContact = crm.Contact{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", Subject: "Test", Message: "Hello <script>"}

func TestNotify_SendsRenderedMail(t *testing.T) {
	mail := &recordingSender{}
	n := New(mail, "admin@example.com", logger.Discard())

	if !n.Notify(context.Background(), testContact, crm.Result{Success: true, ContactID: "123"}) {
		t.Fatalf("expected notify to report success")
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(mail.sent))
	}
	m := mail.sent[0]
	if m.To != "admin@example.com" || m.Subject != DefaultSubject {
		t.Fatalf("unexpected envelope: %+v", m)
	}
	if !strings.Contains(m.Body, "Hello &lt;script&gt;") || strings.Contains(m.Body, "<script>") {
		t.Fatalf("message body not escaped: %s", m.Body)
	}
}

func TestNotify_FailureIsSwallowed(t *testing.T) {
	n := New(&recordingSender{err: errors.New("smtp down")}, "admin@example.com", logger.Discard())
	if n.Notify(context.Background(), testContact, crm.Result{Success: true}) {
		t.Fatalf("expected false on send failure")
	}
}

func TestNotify_FailureLogsCarryRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	reqLog := logger.NewWithWriter(&buf, "production", "").With("request_id", "req-42")
	ctx := logger.With(context.Background(), reqLog)

	n := New(&recordingSender{err: errors.New("smtp down")}, "admin@example.com", logger.Discard(),
		WithAlert(&recordingSender{err: errors.New("bot blocked")}))
	n.Notify(ctx, testContact, crm.Result{Message: "boom"})

	out := buf.String()
	if strings.Count(out, `"request_id":"req-42"`) != 2 {
		t.Fatalf("expected both failures logged with request id, got %s", out)
	}
}

func TestNotify_NoRecipientOrTransport(t *testing.T) {
	if New(&recordingSender{}, "", logger.Discard()).Notify(context.Background(), testContact, crm.Result{}) {
		t.Fatalf("expected false without recipient")
	}
	if New(nil, "admin@example.com", logger.Discard()).Notify(context.Background(), testContact, crm.Result{}) {
		t.Fatalf("expected false with nop sender")
	}
}

func TestNotify_AlertOnlyOnCRMFailure(t *testing.T) {
	mail := &recordingSender{}
	alert := &recordingSender{}
	n := New(mail, "admin@example.com", logger.Discard(), WithAlert(alert))

	n.Notify(context.Background(), testContact, crm.Result{Success: true, ContactID: "1"})
	if len(alert.sent) != 0 {
		t.Fatalf("expected no alert on CRM success")
	}

	n.Notify(context.Background(), testContact, crm.Result{Message: "HubSpot API token is not configured."})
	if len(alert.sent) != 1 || !strings.Contains(alert.sent[0].Body, "Error: HubSpot API token is not configured.") {
		t.Fatalf("unexpected alerts: %+v", alert.sent)
	}
}

func TestNotify_CustomTemplates(t *testing.T) {
	mail := &recordingSender{}
	n := New(mail, "admin@example.com", logger.Discard(), WithTemplates(Templates{Subject: "Lead: {{first_name}}\r\nBcc: x"}))
	n.Notify(context.Background(), testContact, crm.Result{Success: true})
	if mail.sent[0].Subject != "Lead: John Bcc: x" {
		t.Fatalf("unexpected subject %q", mail.sent[0].Subject)
	}
	if mail.sent[0].Body == "" {
		t.Fatalf("expected default body fallback")
	}
}

type fakeTelegram struct {
	got []tgbotapi.Chattable
	err error
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.got = append(f.got, c)
	return tgbotapi.Message{}, f.err
}

type stalledTelegram struct {
	release chan struct{}
}

func (f *stalledTelegram) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-f.release
	return tgbotapi.Message{}, nil
}

func TestTelegramSender_StalledAPIIsBounded(t *testing.T) {
	api := &stalledTelegram{release: make(chan struct{})}
	t.Cleanup(func() { close(api.release) })
	s := &TelegramSender{api: api, chatID: 42, timeout: 20 * time.Millisecond}

	start := time.Now()
	err := s.Send(context.WithoutCancel(context.Background()), Message{Body: "x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Fatalf("send was not bounded: took %s", d)
	}
}

func TestTelegramSender(t *testing.T) {
	api := &fakeTelegram{}
	s := &TelegramSender{api: api, chatID: 42}
	if err := s.Send(context.Background(), Message{Subject: "Alert", Body: "body"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg, ok := api.got[0].(tgbotapi.MessageConfig)
	if !ok || msg.ChatID != 42 || msg.Text != "Alert\n\nbody" {
		t.Fatalf("unexpected telegram message: %#v", api.got[0])
	}

	api.err = errors.New("forbidden")
	if err := s.Send(context.Background(), Message{Body: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

// fakeSMTP accepts one message and records the DATA section.
func fakeSMTP(t *testing.T) (addr string, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	out := make(chan string, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		reply("220 localhost ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 localhost")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				reply("250 OK")
			case cmd == "DATA":
				reply("354 go ahead")
				var b strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					b.WriteString(l)
				}
				out <- b.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 not implemented")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestSMTPSender_DeliversMessage(t *testing.T) {
	addr, data := fakeSMTP(t)
	host, port, _ := net.SplitHostPort(addr)
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("port: %v", err)
	}

	s := NewSMTPSender(SMTPConfig{Host: host, Port: p, From: "site@example.com", Timeout: 5 * time.Second})
	if err := s.Send(context.Background(), Message{To: "admin@example.com", Subject: "New lead", Body: "<p>hi</p>"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-data:
		for _, want := range []string{"To: admin@example.com", "Subject: New lead", "Content-Type: text/html; charset=UTF-8", "<p>hi</p>"} {
			if !strings.Contains(got, want) {
				t.Fatalf("expected %q in message:\n%s", want, got)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no message received")
	}
}

func TestSMTPSender_UnreachableServer(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "a@example.com", Timeout: time.Second})
	if err := s.Send(context.Background(), Message{To: "b@example.com"}); err == nil {
		t.Fatalf("expected dial error")
	}
	if err := s.Send(context.Background(), Message{}); err == nil {
		t.Fatalf("expected empty recipient error")
	}
}
