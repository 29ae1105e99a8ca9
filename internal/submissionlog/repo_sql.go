package submissionlog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLRepo stores entries in the submission_logs table. Queries are written
// with ? placeholders and rebound for the driver, so the same code serves
// Postgres (pgx) and SQLite.
type SQLRepo struct {
	db *sqlx.DB
}

func NewSQLRepo(db *sqlx.DB) *SQLRepo { return &SQLRepo{db: db} }

const entryColumns = `id, created_at, email, result, crm_contact_id, client_ip, form_data, error_message`

func (r *SQLRepo) Insert(ctx context.Context, e Entry) (int64, error) {
	q := r.db.Rebind(`
INSERT INTO submission_logs (created_at, email, result, crm_contact_id, client_ip, form_data, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id
`)
	var id int64
	if err := r.db.QueryRowxContext(ctx, q,
		e.CreatedAt.UTC(),
		e.Email,
		string(e.Result),
		e.CRMContactID,
		e.ClientIP,
		e.FormData,
		e.ErrorMessage,
	).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

const searchClause = `
WHERE LOWER(email) LIKE ? ESCAPE '\'
   OR LOWER(result) LIKE ? ESCAPE '\'
   OR LOWER(COALESCE(crm_contact_id, '')) LIKE ? ESCAPE '\'
   OR LOWER(COALESCE(error_message, '')) LIKE ? ESCAPE '\'
`

func (r *SQLRepo) List(ctx context.Context, q Query) ([]Entry, int, error) {
	var (
		where string
		args  []any
	)
	if q.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		where = searchClause
		args = []any{pattern, pattern, pattern, pattern}
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM submission_logs`+where), args...); err != nil {
		return nil, 0, err
	}

	listQ := r.db.Rebind(`SELECT ` + entryColumns + ` FROM submission_logs` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	out := []Entry{}
	if err := r.db.SelectContext(ctx, &out, listQ, append(args, q.PageSize, q.offset())...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *SQLRepo) Get(ctx context.Context, id int64) (Entry, bool, error) {
	var e Entry
	err := r.db.GetContext(ctx, &e, r.db.Rebind(`SELECT `+entryColumns+` FROM submission_logs WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func (r *SQLRepo) ListSince(ctx context.Context, since time.Time) ([]Entry, error) {
	out := []Entry{}
	q := r.db.Rebind(`SELECT ` + entryColumns + ` FROM submission_logs WHERE created_at >= ? ORDER BY created_at ASC, id ASC`)
	if err := r.db.SelectContext(ctx, &out, q, since.UTC()); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM submission_logs WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
