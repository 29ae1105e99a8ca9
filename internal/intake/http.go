package intake

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"contact-intake/internal/auth"
	"contact-intake/internal/clientip"
	"contact-intake/internal/rbac"

	"github.com/gin-gonic/gin"
)

const (
	formTokenHeader = "X-Form-Token"
	maxBodyBytes    = 64 << 10
)

const (
	MessageThanks       = "Thank you for your message. We will get back to you soon!"
	MessageCRMWarning   = "Your message was received, but there was a technical issue. Our team has been notified."
	MessageInvalidNonce = "Invalid nonce. Please refresh the page and try again."
)

// Handlers serves the public contact endpoints.
type Handlers struct {
	Service *Service
	Tokens  *auth.Manager
	Clock   func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// FormToken issues the anti-forgery token and the timestamp the form must
// echo back.
func (h Handlers) FormToken(c *gin.Context) {
	now := h.now()
	tok, err := h.Tokens.IssueForm(now)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":          tok.Token,
		"expires_at":     tok.ExpiresAt,
		"form_timestamp": now.Unix(),
	})
}

type submitRequest struct {
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Email         string          `json:"email"`
	Subject       string          `json:"subject"`
	Message       string          `json:"message"`
	Website       string          `json:"website"`
	FormTimestamp json.RawMessage `json:"form_timestamp"`
	Nonce         string          `json:"nonce"`
}

// Submit runs the intake pipeline for one form post.
func (h Handlers) Submit(c *gin.Context) {
	if h.Service == nil || h.Tokens == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "intake not configured"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	token := strings.TrimSpace(c.GetHeader(formTokenHeader))
	if token == "" {
		token = strings.TrimSpace(req.Nonce)
	}
	if _, err := h.Tokens.Verify(token, auth.TokenTypeForm, h.now()); token == "" || err != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid_nonce", "message": MessageInvalidNonce})
		return
	}

	out := h.Service.Process(c.Request.Context(), Submission{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Subject:       req.Subject,
		Message:       req.Message,
		Website:       req.Website,
		FormTimestamp: rawTimestamp(req.FormTimestamp),
		ClientIP:      clientip.FromContext(c.Request.Context()),
		Bypass:        h.isAdmin(c),
	})

	switch out.Stage() {
	case StageRejectedAntispam:
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "antispam_failed",
			"reason":  out.Verdict.Reason,
			"message": out.Verdict.Message,
		})
		return
	case StageRejectedValidation:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"fields": out.FieldErrors.ByField(),
		})
		return
	}

	resp := gin.H{"success": true, "message": MessageThanks}
	if out.CRM.Success {
		resp["contact_id"] = out.CRM.ContactID
	} else {
		resp["warning"] = MessageCRMWarning
	}
	c.JSON(http.StatusOK, resp)
}

// isAdmin reports whether the request carries a valid admin access token.
// Admins may test the form without tripping the antispam gate.
func (h Handlers) isAdmin(c *gin.Context) bool {
	tok, ok := auth.BearerToken(c)
	if !ok {
		return false
	}
	claims, err := h.Tokens.Verify(tok, auth.TokenTypeAccess, h.now())
	return err == nil && claims.Role == rbac.RoleAdmin
}

// rawTimestamp accepts form_timestamp as a JSON number or string.
func rawTimestamp(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	// Integral floats such as 1700000000.0 are accepted as seconds.
	if f, err := strconv.ParseFloat(string(raw), 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return string(raw)
}
