package intake

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"contact-intake/internal/antispam"
	"contact-intake/internal/crm"
	"contact-intake/internal/submissionlog"
	"contact-intake/internal/validation"
	"contact-intake/pkg/logger"
)

type Gate interface {
	Evaluate(ctx context.Context, in antispam.Input, now time.Time, clientIP string, bypass bool) antispam.Verdict
}

type FieldValidator interface {
	ValidateAll(ctx context.Context, values map[string]string) validation.Errors
	Sanitize(values map[string]string) map[string]string
}

type ContactCreator interface {
	CreateContact(ctx context.Context, c crm.Contact) crm.Result
}

type LogAppender interface {
	Append(ctx context.Context, e submissionlog.Entry) (int64, error)
}

type Notifier interface {
	Notify(ctx context.Context, c crm.Contact, res crm.Result) bool
}

// Deps are the collaborators of the pipeline. Notifier may be nil.
type Deps struct {
	Gate      Gate
	Validator FieldValidator
	CRM       ContactCreator
	Log       LogAppender
	Notifier  Notifier
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Service runs the submission pipeline:
// antispam, field validation, CRM delivery, logging, notification.
type Service struct {
	gate     Gate
	validate FieldValidator
	crm      ContactCreator
	log      LogAppender
	notifier Notifier
	logger   *slog.Logger
	clock    func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &Service{
		gate:     d.Gate,
		validate: d.Validator,
		crm:      d.CRM,
		log:      d.Log,
		notifier: d.Notifier,
		logger:   d.Logger,
		clock:    d.Clock,
	}
}

// Process runs one submission to completion. Only antispam and validation
// rejections stop the pipeline; once the CRM stage is reached the submission
// is logged and the submitter is told it succeeded, whatever the CRM said.
func (s *Service) Process(ctx context.Context, sub Submission) Outcome {
	var out Outcome
	out.advance(StageReceived)
	log := logger.FromOr(ctx, s.logger)

	ts, _ := strconv.ParseInt(strings.TrimSpace(sub.FormTimestamp), 10, 64)
	out.Verdict = s.gate.Evaluate(ctx, antispam.Input{Website: sub.Website, FormTimestamp: ts}, s.clock(), sub.ClientIP, sub.Bypass)
	if !out.Verdict.Valid {
		log.InfoContext(ctx, "submission rejected by antispam", "reason", out.Verdict.Reason)
		out.advance(StageRejectedAntispam)
		return out
	}
	out.advance(StageAntispamChecked)

	values := map[string]string{
		validation.FieldFirstName:     sub.FirstName,
		validation.FieldLastName:      sub.LastName,
		validation.FieldEmail:         sub.Email,
		validation.FieldSubject:       sub.Subject,
		validation.FieldMessage:       sub.Message,
		validation.FieldFormTimestamp: sub.FormTimestamp,
	}
	if errs := s.validate.ValidateAll(ctx, values); errs != nil {
		log.InfoContext(ctx, "submission rejected by validation", "fields", len(errs))
		out.FieldErrors = errs
		out.advance(StageRejectedValidation)
		return out
	}
	clean := s.validate.Sanitize(values)
	out.advance(StageFieldValidated)

	// From here on the submission is accepted; finish it even if the
	// client goes away.
	ctx = context.WithoutCancel(ctx)

	contact := crm.Contact{
		FirstName: clean[validation.FieldFirstName],
		LastName:  clean[validation.FieldLastName],
		Email:     clean[validation.FieldEmail],
		Subject:   clean[validation.FieldSubject],
		Message:   clean[validation.FieldMessage],
	}
	out.CRM = s.crm.CreateContact(ctx, contact)
	if out.CRM.Success {
		log.InfoContext(ctx, "crm contact created", "contact_id", out.CRM.ContactID)
	} else {
		log.WarnContext(ctx, "crm delivery failed", "error_code", out.CRM.ErrorCode, "message", out.CRM.Message)
	}
	out.advance(StageCRMAttempted)

	id, err := s.log.Append(ctx, s.entryFor(contact, ts, sub.ClientIP, out.CRM))
	if err != nil {
		log.ErrorContext(ctx, "submission log insert failed", "err", err)
	} else {
		out.LogID, out.Logged = id, true
	}
	out.advance(StageLogged)

	if s.notifier != nil {
		out.Notified = s.notifier.Notify(ctx, contact, out.CRM)
	}
	out.advance(StageNotified)

	out.advance(StageResponded)
	return out
}

func (s *Service) entryFor(c crm.Contact, ts int64, clientIP string, res crm.Result) submissionlog.Entry {
	snapshot, err := json.Marshal(formSnapshot{
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Email:         c.Email,
		Subject:       c.Subject,
		Message:       c.Message,
		FormTimestamp: ts,
		ClientIP:      clientIP,
	})
	if err != nil {
		snapshot = []byte("{}")
	}

	e := submissionlog.Entry{
		CreatedAt: s.clock(),
		Email:     c.Email,
		Result:    submissionlog.ResultFailed,
		ClientIP:  clientIP,
		FormData:  string(snapshot),
	}
	if res.Success {
		e.Result = submissionlog.ResultSuccess
		id := res.ContactID
		e.CRMContactID = &id
	} else {
		msg := res.Message
		e.ErrorMessage = &msg
	}
	return e
}
