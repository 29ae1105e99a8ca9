package validation

type Kind int

const (
	KindText Kind = iota
	KindEmail
	KindTimestamp
)

// Rule describes one form field.
type Rule struct {
	Label     string
	Required  bool
	MaxLength int
	Kind      Kind
	// Multiline fields keep their line breaks through sanitization.
	Multiline bool
}

const (
	FieldFirstName     = "first_name"
	FieldLastName      = "last_name"
	FieldEmail         = "email"
	FieldSubject       = "subject"
	FieldMessage       = "message"
	FieldFormTimestamp = "form_timestamp"
)

const (
	DefaultMaxLength = 255
	MessageMaxLength = 5000
)

// FieldOrder fixes iteration order so aggregated errors are stable.
var FieldOrder = []string{
	FieldFirstName,
	FieldLastName,
	FieldEmail,
	FieldSubject,
	FieldMessage,
	FieldFormTimestamp,
}

func DefaultRules() map[string]Rule {
	return map[string]Rule{
		FieldFirstName:     {Label: "First name", Required: true, MaxLength: DefaultMaxLength, Kind: KindText},
		FieldLastName:      {Label: "Last name", Required: true, MaxLength: DefaultMaxLength, Kind: KindText},
		FieldEmail:         {Label: "Email", Required: true, MaxLength: DefaultMaxLength, Kind: KindEmail},
		FieldSubject:       {Label: "Subject", Required: true, MaxLength: DefaultMaxLength, Kind: KindText},
		FieldMessage:       {Label: "Message", Required: true, MaxLength: MessageMaxLength, Kind: KindText, Multiline: true},
		FieldFormTimestamp: {Label: "Form timestamp", Required: true, Kind: KindTimestamp},
	}
}
