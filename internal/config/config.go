// Package config loads the mailer's settings from environment variables.
//
// Every section has its own loader and validator. Load runs all of them and
// reports every invalid variable at once, so a broken deployment shows the
// full list in a single log line.
package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists origins allowed to call the JSON API. Empty allows all.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS
}

// SecurityConfig controls HSTS.
type SecurityConfig struct {
	EnableHSTS bool          // ENABLE_HSTS
	HSTSMaxAge time.Duration // HSTS_MAX_AGE
}

// OTELConfig defines OpenTelemetry tracing settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SMTPConfig holds the outgoing mail server settings. An empty Host means
// no server is configured and emails are logged instead of sent.
type SMTPConfig struct {
	Host      string        // SMTP_SERVER
	Port      int           // SMTP_PORT
	Username  string        // SMTP_USERNAME
	Password  string        // SMTP_PASSWORD
	FromEmail string        // FROM_EMAIL
	FromName  string        // FROM_NAME
	UseTLS    bool          // SMTP_USE_TLS (STARTTLS)
	Timeout   time.Duration // SMTP_TIMEOUT
}

// EmailConfig bounds generated emails.
type EmailConfig struct {
	MaxSubjectLength int // EMAIL_MAX_SUBJECT_LENGTH (>= 10)
	MaxContentLength int // EMAIL_MAX_CONTENT_LENGTH in bytes (>= 1024)
	RateLimitPerHour int // EMAIL_RATE_LIMIT_PER_HOUR (0 = unlimited)
}

// AIConfig configures the optional text generator used for subjects.
type AIConfig struct {
	APIKey   string  // AI_API_KEY (empty disables generation)
	Model    string  // AI_MODEL
	BaseURL  string  // AI_BASE_URL
	RPS      float64 // AI_RPS
	MaxCalls int     // AI_MAX_CALLS per email
}

// DeliveryConfig tunes the send pipeline.
type DeliveryConfig struct {
	SendTimeout     time.Duration // SEND_TIMEOUT
	BulkWorkers     int           // BULK_WORKERS
	ImageLayoutBias float64       // IMAGE_LAYOUT_BIAS in [0..1]
}

// JobsConfig schedules maintenance.
type JobsConfig struct {
	CleanupSchedule       string // CLEANUP_SCHEDULE (cron spec, empty disables)
	OneLinerRetentionDays int    // ONELINER_RETENTION_DAYS
}

// Config is the full application configuration.
type Config struct {
	Port              string        // PORT
	ReadTimeout       time.Duration // READ_TIMEOUT
	ReadHeaderTimeout time.Duration // READ_HEADER_TIMEOUT
	WriteTimeout      time.Duration // WRITE_TIMEOUT, long enough for a bulk send
	IdleTimeout       time.Duration // IDLE_TIMEOUT
	MaxHeaderBytes    int           // MAX_HEADER_BYTES
	GinMode           string        // GIN_MODE: debug|release|test

	LogLevel       string // LOG_LEVEL
	LogPretty      bool   // LOG_PRETTY
	SwaggerEnabled bool   // SWAGGER_ENABLED
	APIBasePath    string // API_BASE_PATH

	DBPath  string // DB_PATH
	BaseURL string // BASE_URL, public origin used in tracking links

	RateRPS   float64 // RATE_RPS per client
	RateBurst int     // RATE_BURST

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration // IDEMPOTENCY_TTL

	SMTP     SMTPConfig
	Email    EmailConfig
	AI       AIConfig
	Delivery DeliveryConfig
	Jobs     JobsConfig

	OTEL OTELConfig
}

// SMTPEnabled reports whether a mail server is configured.
func (c Config) SMTPEnabled() bool { return strings.TrimSpace(c.SMTP.Host) != "" }

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads, normalizes and validates the configuration. The returned
// error joins one message per invalid variable.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           ginMode(getenv("GIN_MODE", "release")),

		LogLevel:       logLevel(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DBPath:  getenv("DB_PATH", "digest.db"),
		BaseURL: strings.TrimRight(strings.TrimSpace(getenv("BASE_URL", "http://localhost:8080")), "/"),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		SMTP:     loadSMTP(),
		Email:    loadEmail(),
		AI:       loadAI(),
		Delivery: loadDelivery(),
		Jobs: JobsConfig{
			CleanupSchedule:       strings.TrimSpace(getenv("CLEANUP_SCHEDULE", "@hourly")),
			OneLinerRetentionDays: getint("ONELINER_RETENTION_DAYS", 30),
		},
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "news-digest-mailer"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}
	return cfg, cfg.validate()
}

func loadSMTP() SMTPConfig {
	return SMTPConfig{
		Host:      strings.TrimSpace(getenv("SMTP_SERVER", "")),
		Port:      getint("SMTP_PORT", 587),
		Username:  getenv("SMTP_USERNAME", ""),
		Password:  getenv("SMTP_PASSWORD", ""),
		FromEmail: getenv("FROM_EMAIL", "digest@localhost"),
		FromName:  getenv("FROM_NAME", "News Digest"),
		UseTLS:    getbool("SMTP_USE_TLS", true),
		Timeout:   getdur("SMTP_TIMEOUT", 30*time.Second),
	}
}

func loadEmail() EmailConfig {
	return EmailConfig{
		MaxSubjectLength: getint("EMAIL_MAX_SUBJECT_LENGTH", 78),
		MaxContentLength: getint("EMAIL_MAX_CONTENT_LENGTH", 1<<20),
		RateLimitPerHour: getint("EMAIL_RATE_LIMIT_PER_HOUR", 100),
	}
}

func loadAI() AIConfig {
	return AIConfig{
		APIKey:   getenv("AI_API_KEY", ""),
		Model:    getenv("AI_MODEL", ""),
		BaseURL:  getenv("AI_BASE_URL", ""),
		RPS:      getfloat("AI_RPS", 2.0),
		MaxCalls: getint("AI_MAX_CALLS", 6),
	}
}

func loadDelivery() DeliveryConfig {
	return DeliveryConfig{
		SendTimeout:     getdur("SEND_TIMEOUT", 60*time.Second),
		BulkWorkers:     getint("BULK_WORKERS", 4),
		ImageLayoutBias: getfloat("IMAGE_LAYOUT_BIAS", 0.8),
	}
}

// checks collects validation failures.
type checks []error

func (c *checks) require(ok bool, msg string) {
	if !ok {
		*c = append(*c, errors.New(msg))
	}
}

func (c Config) validate() error {
	var v checks
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		v.require(false, "LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic")
	}
	v.require(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	v.require(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	v.require(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	v.require(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	v.require(absoluteHTTP(c.BaseURL), "BASE_URL must be an absolute http(s) URL")
	v.require(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	v.require(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	v.require(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	v.require(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	v = append(v, c.SMTP.validate()...)
	v = append(v, c.Email.validate()...)
	v.require(c.AI.RPS >= 0, "AI_RPS must be >= 0")
	v.require(c.AI.MaxCalls >= 0, "AI_MAX_CALLS must be >= 0")
	v = append(v, c.Delivery.validate()...)
	v.require(c.Jobs.OneLinerRetentionDays >= 1, "ONELINER_RETENTION_DAYS must be >= 1")
	v.require(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errors.Join(v...)
}

func (s SMTPConfig) validate() checks {
	var v checks
	v.require(s.Port > 0 && s.Port <= 65535, "SMTP_PORT must be in [1,65535]")
	v.require(s.Timeout > 0, "SMTP_TIMEOUT must be > 0")
	if s.Host != "" {
		v.require(strings.TrimSpace(s.FromEmail) != "", "FROM_EMAIL must not be empty when SMTP_SERVER is set")
	}
	return v
}

func (e EmailConfig) validate() checks {
	var v checks
	v.require(e.MaxSubjectLength >= 10, "EMAIL_MAX_SUBJECT_LENGTH must be >= 10")
	v.require(e.MaxContentLength >= 1024, "EMAIL_MAX_CONTENT_LENGTH must be >= 1024")
	v.require(e.RateLimitPerHour >= 0, "EMAIL_RATE_LIMIT_PER_HOUR must be >= 0")
	return v
}

func (d DeliveryConfig) validate() checks {
	var v checks
	v.require(d.SendTimeout > 0, "SEND_TIMEOUT must be > 0")
	v.require(d.BulkWorkers >= 1, "BULK_WORKERS must be >= 1")
	v.require(d.ImageLayoutBias >= 0 && d.ImageLayoutBias <= 1, "IMAGE_LAYOUT_BIAS must be in [0,1]")
	return v
}

func absoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ginMode falls back to release for anything gin would reject.
func ginMode(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "debug", "release", "test":
		return s
	}
	return "release"
}

func logLevel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return "warn"
	}
	return s
}

// ---- env getters: unset, empty or unparsable values yield def ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(getenv(k, "")), 64)
	if err != nil {
		return def
	}
	return f
}

func getint(k string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(getenv(k, "")))
	if err != nil {
		return def
	}
	return i
}

func getbool(k string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(getenv(k, ""))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(getenv(k, "")))
	if err != nil {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and no trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
