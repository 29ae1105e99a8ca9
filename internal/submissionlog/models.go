package submissionlog

import "time"

// Entry is one submission attempt that reached the CRM stage.
//
// Invariants:
// - Entries are inserted once and never updated.
// - Result is always success or failed.
// - Rotation is the only delete path.
type Entry struct {
	ID           int64     `json:"id" db:"id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	Email        string    `json:"email" db:"email"`
	Result       Result    `json:"result" db:"result"`
	CRMContactID *string   `json:"crm_contact_id,omitempty" db:"crm_contact_id"`
	ClientIP     string    `json:"client_ip" db:"client_ip"`

	// FormData is the JSON snapshot of the submitted fields.
	FormData     string  `json:"form_data" db:"form_data"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
}

type Result string

const (
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
)

func (r Result) Valid() bool { return r == ResultSuccess || r == ResultFailed }

// Query selects one page of entries, newest first.
type Query struct {
	Page     int
	PageSize int
	Search   string
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps (Page-1)*PageSize well inside int32, the narrowest
	// OFFSET the SQL backends accept.
	MaxPage = 1_000_000
)

type Page struct {
	Entries  []Entry `json:"entries"`
	Total    int     `json:"total"`
	Pages    int     `json:"pages"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

func (q Query) normalized() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	return q
}

func (q Query) offset() int { return (q.Page - 1) * q.PageSize }

func pageCount(total, size int) int {
	if total == 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
