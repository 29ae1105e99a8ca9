package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"contact-intake/internal/auth"
	"contact-intake/internal/crm"
	"contact-intake/internal/ratelimit"
	"contact-intake/internal/reporting"
	"contact-intake/internal/submissionlog"
	"contact-intake/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CRMTester is satisfied by *crm.Client.
type CRMTester interface {
	TestConnection(ctx context.Context) crm.Result
	CreateTestContact(ctx context.Context) crm.Result
}

// Handlers groups admin HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth        *auth.Manager
	Credentials *auth.Credentials
	CRM         CRMTester
	RateLimits  *ratelimit.Limiter
	Logs        *submissionlog.Service
	Reports     *reporting.Service

	// RetentionDays is the default for manual rotation.
	RetentionDays int
	Clock         func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks admin credentials and issues an access token.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.Credentials == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Username == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username, password required"})
		return
	}
	role, err := h.Credentials.Authenticate(req.Username, req.Password)
	if err != nil {
		logger.FromGin(c).Warn("admin login failed", "username", req.Username)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	tok, err := h.Auth.IssueAccess(h.now(), req.Username, role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": tok.Token,
		"token_type":   "Bearer",
		"expires_at":   tok.ExpiresAt,
		"role":         role,
	})
}

// --- CRM ---

type crmTestRequest struct {
	CreateTestContact bool `json:"create_test_contact"`
}

// TestCRM checks HubSpot connectivity, optionally creating a test contact.
// The CRM outcome is reported in the body; the HTTP status is 200 either way.
func (h Handlers) TestCRM(c *gin.Context) {
	if h.CRM == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "crm not configured"})
		return
	}
	var req crmTestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	res := h.CRM.TestConnection(c.Request.Context())
	if res.Success && req.CreateTestContact {
		res = h.CRM.CreateTestContact(c.Request.Context())
	}
	c.JSON(http.StatusOK, res)
}

// --- Rate limits ---

func (h Handlers) ListRateLimits(c *gin.Context) {
	if h.RateLimits == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limiter not configured"})
		return
	}
	entries, err := h.RateLimits.Active(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("list rate limits failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":        entries,
		"limit":          h.RateLimits.Limit(),
		"window_seconds": int(h.RateLimits.Window().Seconds()),
	})
}

func (h Handlers) RateLimitStatus(c *gin.Context) {
	if h.RateLimits == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limiter not configured"})
		return
	}
	ip := strings.TrimSpace(c.Query("ip"))
	if ip == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "ip required"})
		return
	}
	st, err := h.RateLimits.Status(c.Request.Context(), ip)
	if err != nil {
		logger.FromGin(c).Error("rate limit status failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit store unavailable"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h Handlers) ClearRateLimits(c *gin.Context) {
	if h.RateLimits == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limiter not configured"})
		return
	}
	n, err := h.RateLimits.ClearAll(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("clear rate limits failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit store unavailable"})
		return
	}
	logger.FromGin(c).Info("rate limits cleared", "count", n)
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

func (h Handlers) ClearRateLimit(c *gin.Context) {
	if h.RateLimits == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limiter not configured"})
		return
	}
	ok, err := h.RateLimits.Clear(c.Request.Context(), c.Param("ip"))
	if errors.Is(err, ratelimit.ErrInvalidArgument) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "ip required"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("clear rate limit failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": ok})
}

// --- Submission log ---

func (h Handlers) ListSubmissions(c *gin.Context) {
	if h.Logs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "submission log not configured"})
		return
	}
	page, err1 := optionalQueryInt(c, "page")
	size, err2 := optionalQueryInt(c, "page_size")
	if err1 != nil || err2 != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "page and page_size must be integers"})
		return
	}
	p, err := h.Logs.Query(c.Request.Context(), submissionlog.Query{Page: page, PageSize: size, Search: c.Query("search")})
	if err != nil {
		logger.FromGin(c).Error("query submission log failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) GetSubmission(c *gin.Context) {
	if h.Logs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "submission log not configured"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	e, err := h.Logs.Get(c.Request.Context(), id)
	if errors.Is(err, submissionlog.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("get submission failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, e)
}

// RotateSubmissions deletes entries older than ?days= (default: configured
// retention) and returns the deleted count.
func (h Handlers) RotateSubmissions(c *gin.Context) {
	if h.Logs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "submission log not configured"})
		return
	}
	days, err := optionalQueryInt(c, "days")
	if err != nil || days < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}
	if days == 0 {
		days = h.RetentionDays
	}
	n, err := h.Logs.Rotate(c.Request.Context(), days)
	if errors.Is(err, submissionlog.ErrInvalidEntry) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("rotate submission log failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rotation failed"})
		return
	}
	logger.FromGin(c).Info("submission log rotated", "deleted", n, "retention_days", days)
	c.JSON(http.StatusOK, gin.H{"deleted": n, "retention_days": days})
}

// --- Reporting ---

const (
	defaultStatsDays = 30
	maxStatsDays     = 366
)

// Stats summarizes the last ?days= days (default 30), or ?from=&to= in RFC 3339.
func (h Handlers) Stats(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	r, err := h.statsRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sum, err := h.Reports.Summary(c.Request.Context(), r)
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("stats failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h Handlers) statsRange(c *gin.Context) (reporting.TimeRange, error) {
	now := h.now().UTC()
	if from, to := c.Query("from"), c.Query("to"); from != "" || to != "" {
		f, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return reporting.TimeRange{}, errors.New("from must be RFC 3339")
		}
		t := now
		if to != "" {
			if t, err = time.Parse(time.RFC3339, to); err != nil {
				return reporting.TimeRange{}, errors.New("to must be RFC 3339")
			}
		}
		return reporting.TimeRange{From: f, To: t}, nil
	}

	days, err := optionalQueryInt(c, "days")
	if err != nil || days < 0 || days > maxStatsDays {
		return reporting.TimeRange{}, errors.New("days must be between 1 and 366")
	}
	if days == 0 {
		days = defaultStatsDays
	}
	return reporting.TimeRange{From: now.AddDate(0, 0, -days), To: now.Add(time.Second)}, nil
}

func optionalQueryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
