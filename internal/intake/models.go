package intake

import (
	"contact-intake/internal/antispam"
	"contact-intake/internal/crm"
	"contact-intake/internal/validation"
)

// Stage is a pipeline state. A run moves forward only; the two Rejected
// stages are terminal.
type Stage string

const (
	StageReceived           Stage = "received"
	StageAntispamChecked    Stage = "antispam_checked"
	StageFieldValidated     Stage = "field_validated"
	StageCRMAttempted       Stage = "crm_attempted"
	StageLogged             Stage = "logged"
	StageNotified           Stage = "notified"
	StageResponded          Stage = "responded"
	StageRejectedAntispam   Stage = "rejected_antispam"
	StageRejectedValidation Stage = "rejected_validation"
)

// Submission is one visitor-submitted form as received.
type Submission struct {
	FirstName string
	LastName  string
	Email     string
	Subject   string
	Message   string

	// Website is the honeypot field.
	Website string

	// FormTimestamp is the client-supplied unix time, unparsed.
	FormTimestamp string

	ClientIP string

	// Bypass skips the antispam gate for authenticated administrators.
	Bypass bool
}

// Outcome records how far a submission got and what each stage produced.
type Outcome struct {
	Trace       []Stage
	Verdict     antispam.Verdict
	FieldErrors validation.Errors
	CRM         crm.Result
	LogID       int64
	Logged      bool
	Notified    bool
}

// Stage is the last stage reached.
func (o Outcome) Stage() Stage {
	if len(o.Trace) == 0 {
		return ""
	}
	return o.Trace[len(o.Trace)-1]
}

// Accepted reports whether the submitter should see a success response.
// CRM, log and notification failures do not affect it.
func (o Outcome) Accepted() bool { return o.Stage() == StageResponded }

func (o *Outcome) advance(s Stage) { o.Trace = append(o.Trace, s) }

// formSnapshot is the JSON stored with each log entry.
type formSnapshot struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Subject       string `json:"subject"`
	Message       string `json:"message"`
	FormTimestamp int64  `json:"form_timestamp"`
	ClientIP      string `json:"client_ip"`
}
