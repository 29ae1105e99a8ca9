package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ccojocar/zxcvbn-go"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration required by the API process.
// All values come from env (optionally seeded from an env-file).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Antispam  AntispamConfig
	Auth      AuthConfig
	HubSpot   HubSpotConfig
	Email     EmailConfig
	SMTP      SMTPConfig
	Notify    NotifyConfig
	Telegram  TelegramConfig
	Retention RetentionConfig
}

type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

type DBConfig struct {
	Driver string

	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for production posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	SQLitePath string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

const (
	RateLimitStoreRedis  = "redis"
	RateLimitStoreMemory = "memory"
)

type RateLimitConfig struct {
	Store   string
	PerHour int
	Window  time.Duration
}

type AntispamConfig struct {
	MinElapsed time.Duration
	MaxElapsed time.Duration
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
	FormTokenTTL   time.Duration

	// AdminUsers is parsed from ADMIN_USERS ("name:role:bcrypt-hash,...").
	AdminUsers []AdminUser
}

type AdminUser struct {
	Username     string
	Role         string
	PasswordHash string
}

type HubSpotConfig struct {
	APIToken string
	BaseURL  string
	Timeout  time.Duration
}

type EmailConfig struct {
	DNSCheck    bool
	DNSCacheTTL time.Duration
	DNSTimeout  time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type NotifyConfig struct {
	AdminEmail    string
	TemplatesFile string
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

type RetentionConfig struct {
	Days     int
	Schedule string
}

// LoadEnvFile seeds the process environment from a dotenv file.
// A missing file is not an error; variables already set win.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))

	c.DB.Driver = strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := optionalInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.SQLitePath = strings.TrimSpace(os.Getenv("DB_SQLITE_PATH"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := optionalInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optionalInt("REDIS_DB")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	c.RateLimit.Store = strings.ToLower(strings.TrimSpace(os.Getenv("RATE_LIMIT_STORE")))
	{
		n, err := optionalInt("RATE_LIMIT_PER_HOUR")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.RateLimit.PerHour = n
	}
	c.RateLimit.Window = mustDuration("RATE_LIMIT_WINDOW")

	c.Antispam.MinElapsed = mustDuration("FORM_MIN_ELAPSED")
	c.Antispam.MaxElapsed = mustDuration("FORM_MAX_ELAPSED")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.FormTokenTTL = mustDuration("FORM_TOKEN_TTL")
	{
		users, err := parseAdminUsers(os.Getenv("ADMIN_USERS"))
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Auth.AdminUsers = users
	}

	c.HubSpot.APIToken = strings.TrimSpace(os.Getenv("HUBSPOT_API_TOKEN"))
	c.HubSpot.BaseURL = strings.TrimSpace(os.Getenv("HUBSPOT_BASE_URL"))
	c.HubSpot.Timeout = mustDuration("HUBSPOT_TIMEOUT")

	{
		b, err := optionalBool("EMAIL_DNS_CHECK", true)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Email.DNSCheck = b
	}
	c.Email.DNSCacheTTL = mustDuration("DNS_CACHE_TTL")
	c.Email.DNSTimeout = mustDuration("DNS_TIMEOUT")

	c.SMTP.Host = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	{
		n, err := optionalInt("SMTP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.SMTP.Port = n
	}
	c.SMTP.Username = strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	c.SMTP.From = strings.TrimSpace(os.Getenv("SMTP_FROM"))

	c.Notify.AdminEmail = strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
	c.Notify.TemplatesFile = strings.TrimSpace(os.Getenv("NOTIFY_TEMPLATES_FILE"))

	c.Telegram.BotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("TELEGRAM_CHAT_ID must be an integer, got %q", v))
		}
		c.Telegram.ChatID = id
	}

	{
		n, err := optionalInt("LOG_RETENTION_DAYS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Retention.Days = n
	}
	c.Retention.Schedule = strings.TrimSpace(os.Getenv("LOG_ROTATION_SCHEDULE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every config problem at once and fills in defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.LogLevel != "" && !isValidLogLevel(c.App.LogLevel) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.App.LogLevel))
	}

	errs = append(errs, c.validateDB()...)

	if c.RateLimit.Store == "" {
		c.RateLimit.Store = RateLimitStoreRedis
	}
	switch c.RateLimit.Store {
	case RateLimitStoreRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when RATE_LIMIT_STORE=redis"))
		}
		if c.Redis.Port == 0 {
			c.Redis.Port = 6379
		}
		if c.Redis.Port < 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	case RateLimitStoreMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("RATE_LIMIT_STORE=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_STORE must be one of redis, memory, got %q", c.RateLimit.Store))
	}
	if c.RateLimit.PerHour == 0 {
		c.RateLimit.PerHour = 3
	}
	if c.RateLimit.PerHour < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_HOUR must be positive, got %d", c.RateLimit.PerHour))
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Hour
	}

	if c.Antispam.MinElapsed <= 0 {
		c.Antispam.MinElapsed = 3 * time.Second
	}
	if c.Antispam.MaxElapsed <= 0 {
		c.Antispam.MaxElapsed = time.Hour
	}
	if c.Antispam.MaxElapsed <= c.Antispam.MinElapsed {
		errs = append(errs, errors.New("FORM_MAX_ELAPSED must be greater than FORM_MIN_ELAPSED"))
	}

	errs = append(errs, c.validateAuth()...)

	if c.HubSpot.BaseURL == "" {
		c.HubSpot.BaseURL = "https://api.hubapi.com"
	}
	if c.IsProduction() && !strings.HasPrefix(c.HubSpot.BaseURL, "https://") {
		errs = append(errs, errors.New("HUBSPOT_BASE_URL must use https in production"))
	}
	if c.HubSpot.Timeout <= 0 {
		c.HubSpot.Timeout = 30 * time.Second
	}

	if c.Email.DNSCacheTTL <= 0 {
		c.Email.DNSCacheTTL = 10 * time.Minute
	}
	if c.Email.DNSTimeout <= 0 {
		c.Email.DNSTimeout = 5 * time.Second
	}

	if c.SMTP.Host != "" {
		if c.SMTP.Port == 0 {
			c.SMTP.Port = 587
		}
		if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
			errs = append(errs, fmt.Errorf("SMTP_PORT must be a valid port, got %d", c.SMTP.Port))
		}
		if c.SMTP.From == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
		}
		if c.Notify.AdminEmail == "" {
			errs = append(errs, errors.New("ADMIN_EMAIL is required when SMTP_HOST is set"))
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == 0) {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}

	if c.Retention.Days == 0 {
		c.Retention.Days = 30
	}
	if c.Retention.Days < 0 {
		errs = append(errs, fmt.Errorf("LOG_RETENTION_DAYS must be positive, got %d", c.Retention.Days))
	}
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = "@daily"
	}
	if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("LOG_ROTATION_SCHEDULE is invalid: %v", err))
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Driver == "" {
		c.DB.Driver = DBDriverPostgres
	}
	switch c.DB.Driver {
	case DBDriverPostgres:
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.DB.Port == 0 {
			c.DB.Port = 5432
		}
		if c.DB.Port < 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				// Local-friendly default; production must be explicit.
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	case DBDriverSQLite:
		if c.DB.SQLitePath == "" {
			c.DB.SQLitePath = "contact-intake.db"
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of postgres, sqlite, got %q", c.DB.Driver))
	}
	return errs
}

func (c *Config) validateAuth() []error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Auth.JWTSecret != "" && zxcvbn.PasswordStrength(c.Auth.JWTSecret, nil).Score < 3 {
			errs = append(errs, errors.New("JWT_SECRET is too weak for production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.FormTokenTTL <= 0 {
		c.Auth.FormTokenTTL = 2 * time.Hour
	}
	for _, u := range c.Auth.AdminUsers {
		if u.Role != "admin" && u.Role != "viewer" {
			errs = append(errs, fmt.Errorf("ADMIN_USERS: role for %q must be admin or viewer, got %q", u.Username, u.Role))
		}
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// DatabaseDSN returns the DSN for the configured driver.
// Avoid logging this string; it contains secrets.
func (c Config) DatabaseDSN() string {
	if c.DB.Driver == DBDriverSQLite {
		// Fixed-offset text timestamps keep range scans ordered.
		return c.DB.SQLitePath + "?_time_format=sqlite"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c Config) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTP.Host, c.SMTP.Port)
}

func parseAdminUsers(raw string) ([]AdminUser, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []AdminUser
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		// bcrypt hashes never contain ':' so SplitN is safe.
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("ADMIN_USERS entries must look like name:role:hash, got %q", maskHash(item))
		}
		out = append(out, AdminUser{Username: parts[0], Role: parts[1], PasswordHash: parts[2]})
	}
	return out, nil
}

func maskHash(item string) string {
	if i := strings.LastIndex(item, ":"); i >= 0 {
		return item[:i+1] + "***"
	}
	return "***"
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func optionalBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch v {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
