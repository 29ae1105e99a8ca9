package notify

import (
	"html"
	"strings"

	"contact-intake/internal/crm"
)

// Tokens recognized by Render.
const (
	TokenFirstName    = "first_name"
	TokenLastName     = "last_name"
	TokenEmail        = "email"
	TokenSubject      = "subject"
	TokenMessage      = "message"
	TokenCRMStatus    = "crm_status"
	TokenCRMContactID = "crm_contact_id"
	TokenCRMError     = "crm_error"
)

const (
	StatusSuccess = "Success"
	StatusFailed  = "Failed"
)

// Values maps token names to raw (unescaped) values.
type Values map[string]string

// ValuesFor builds the token set for one submission and its CRM outcome.
func ValuesFor(c crm.Contact, res crm.Result) Values {
	v := Values{
		TokenFirstName:    c.FirstName,
		TokenLastName:     c.LastName,
		TokenEmail:        c.Email,
		TokenSubject:      c.Subject,
		TokenMessage:      c.Message,
		TokenCRMStatus:    StatusFailed,
		TokenCRMContactID: res.ContactID,
		TokenCRMError:     "",
	}
	if res.Success {
		v[TokenCRMStatus] = StatusSuccess
	} else {
		v[TokenCRMError] = res.Message
	}
	return v
}

// Escaper is applied to every substituted value.
type Escaper func(string) string

// HTMLEscape is the escaper for e-mail bodies.
func HTMLEscape(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>\n")
}

// PlainEscape drops control characters other than newline and tab.
func PlainEscape(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// HeaderEscape keeps a value on a single line.
func HeaderEscape(s string) string {
	return strings.Join(strings.Fields(PlainEscape(s)), " ")
}

// Render expands {{token}} placeholders and {{#if token}}...{{/if}} blocks.
// A block is kept when its token has a non-blank value. Blocks do not nest.
// Substituted values are escaped and never re-scanned, so user input cannot
// introduce placeholders of its own. Unknown tokens are left as written.
func Render(tpl string, v Values, esc Escaper) string {
	if esc == nil {
		esc = PlainEscape
	}
	return render(tpl, v, esc, true)
}

func render(tpl string, v Values, esc Escaper, blocks bool) string {
	var b strings.Builder
	b.Grow(len(tpl))

	for {
		open := strings.Index(tpl, "{{")
		if open < 0 {
			b.WriteString(tpl)
			return b.String()
		}
		b.WriteString(tpl[:open])
		rest := tpl[open+2:]

		end := strings.Index(rest, "}}")
		if end < 0 {
			b.WriteString(tpl[open:])
			return b.String()
		}
		tag := strings.TrimSpace(rest[:end])
		after := rest[end+2:]

		switch {
		case blocks && strings.HasPrefix(tag, "#if "):
			name := strings.TrimSpace(strings.TrimPrefix(tag, "#if "))
			closeAt := strings.Index(after, "{{/if}}")
			if closeAt < 0 {
				// Unterminated block: emit the tag verbatim.
				b.WriteString(tpl[open : open+2+end+2])
				tpl = after
				continue
			}
			if strings.TrimSpace(v[name]) != "" {
				b.WriteString(render(after[:closeAt], v, esc, false))
			}
			tpl = after[closeAt+len("{{/if}}"):]
		default:
			if val, ok := v[tag]; ok {
				b.WriteString(esc(val))
			} else {
				b.WriteString(tpl[open : open+2+end+2])
			}
			tpl = after
		}
	}
}
