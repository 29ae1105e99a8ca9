package notify

import (
	"context"
	"log/slog"
	"strings"

	"contact-intake/internal/crm"
	"contact-intake/pkg/logger"
)

// Notifier tells the site administrator about a processed submission.
// Every method is best-effort: failures are logged and reported as false.
type Notifier struct {
	mail      Sender
	alert     Sender
	recipient string
	tpl       Templates
	log       *slog.Logger
}

type Option func(*Notifier)

// WithAlert adds a secondary sender that fires only when CRM delivery failed.
func WithAlert(s Sender) Option { return func(n *Notifier) { n.alert = s } }

func WithTemplates(t Templates) Option { return func(n *Notifier) { n.tpl = t.withDefaults() } }

func New(mail Sender, recipient string, log *slog.Logger, opts ...Option) *Notifier {
	if mail == nil {
		mail = NopSender{}
	}
	if log == nil {
		log = slog.Default()
	}
	n := &Notifier{
		mail:      mail,
		recipient: strings.TrimSpace(recipient),
		tpl:       DefaultTemplates(),
		log:       log,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Send delivers an already rendered message to recipient.
func (n *Notifier) Send(ctx context.Context, subject, body, recipient string) bool {
	if strings.TrimSpace(recipient) == "" {
		logger.FromOr(ctx, n.log).WarnContext(ctx, "notification skipped: no admin recipient configured")
		return false
	}
	if err := n.mail.Send(ctx, Message{To: recipient, Subject: subject, Body: body}); err != nil {
		logger.FromOr(ctx, n.log).WarnContext(ctx, "admin notification failed", "err", err)
		return false
	}
	return true
}

// Notify renders the templates for one submission and sends them to the
// configured recipient. The alert channel is used only for CRM failures.
func (n *Notifier) Notify(ctx context.Context, c crm.Contact, res crm.Result) bool {
	v := ValuesFor(c, res)
	subject := Render(n.tpl.Subject, v, HeaderEscape)
	body := Render(n.tpl.Body, v, HTMLEscape)
	sent := n.Send(ctx, subject, body, n.recipient)

	if !res.Success && n.alert != nil {
		text := Render(n.tpl.Alert, v, PlainEscape)
		if err := n.alert.Send(ctx, Message{Body: text}); err != nil {
			logger.FromOr(ctx, n.log).WarnContext(ctx, "crm failure alert failed", "err", err)
		}
	}
	return sent
}
