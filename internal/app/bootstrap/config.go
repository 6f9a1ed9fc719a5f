// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for RecruitHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, base_url, etc.
//   - Environment variables: RECRUITHUB_MONGO_URI, RECRUITHUB_BASE_URL, etc.
//   - Command-line flags: --mongo_uri, --base_url, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "recruithub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank logs notifications instead of sending)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@recruithub.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "RecruitHub", Desc: "From display name"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Public base URL for feedback links"},
	{Name: "site_name", Default: "RecruitHub", Desc: "Site name used in email copy"},

	// Committee workflow
	{Name: "feedback_token_ttl_days", Default: 7, Desc: "Days a feedback link stays valid"},
	{Name: "reminder_sweep_interval", Default: "1h", Desc: "How often pending reviewers are checked for reminders (e.g., 30m, 1h)"},
	{Name: "dispatch_concurrency", Default: 4, Desc: "Parallel notification sends per dispatch"},
	{Name: "feedback_rate_limit", Default: 30, Desc: "Feedback link requests allowed per client IP per minute"},

	{Name: "notify_timeout", Default: "10s", Desc: "Timeout for a single notification send"},

	// Audit logging settings
	{Name: "audit_log_committee", Default: "all", Desc: "Committee event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_feedback", Default: "all", Desc: "Reviewer event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "metrics_enabled", Default: true, Desc: "Serve Prometheus metrics at /metrics"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, RECRUITHUB_* for app) and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "RECRUITHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		// Email/SMTP
		MailSMTPHost: strings.TrimSpace(appValues.String("mail_smtp_host")),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		BaseURL:  appValues.String("base_url"),
		SiteName: appValues.String("site_name"),

		FeedbackTokenTTL:      time.Duration(appValues.Int("feedback_token_ttl_days")) * 24 * time.Hour,
		ReminderSweepInterval: appValues.Duration("reminder_sweep_interval", time.Hour),
		DispatchConcurrency:   appValues.Int("dispatch_concurrency"),
		FeedbackRateLimit:     appValues.Int("feedback_rate_limit"),

		NotifyTimeout: appValues.Duration("notify_timeout", 10*time.Second),

		AuditLogCommittee: appValues.String("audit_log_committee"),
		AuditLogFeedback:  appValues.String("audit_log_feedback"),

		MetricsEnabled: appValues.Bool("metrics_enabled"),
	}

	return coreCfg, appCfg, nil
}

var auditModes = map[string]bool{"all": true, "db": true, "log": true, "off": true}

// ValidateConfig performs app-specific config validation.
//
// RecruitHub validates the MongoDB URI format to catch configuration
// errors early, before attempting to connect, and rejects non-positive
// lifetimes and intervals.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(appCfg)
}

func validateApp(appCfg AppConfig) error {
	var errs []error
	if strings.TrimSpace(appCfg.MongoDatabase) == "" {
		errs = append(errs, errors.New("mongo_database is required"))
	}
	if appCfg.FeedbackTokenTTL <= 0 {
		errs = append(errs, errors.New("feedback_token_ttl_days must be positive"))
	}
	if appCfg.ReminderSweepInterval <= 0 {
		errs = append(errs, errors.New("reminder_sweep_interval must be positive"))
	}
	if appCfg.NotifyTimeout <= 0 {
		errs = append(errs, errors.New("notify_timeout must be positive"))
	}
	if appCfg.DispatchConcurrency < 1 {
		errs = append(errs, errors.New("dispatch_concurrency must be at least 1"))
	}
	if appCfg.FeedbackRateLimit < 1 {
		errs = append(errs, errors.New("feedback_rate_limit must be at least 1"))
	}
	if !strings.HasPrefix(appCfg.BaseURL, "http://") && !strings.HasPrefix(appCfg.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("base_url must be an http(s) URL, got %q", appCfg.BaseURL))
	}
	for key, v := range map[string]string{
		"audit_log_committee": appCfg.AuditLogCommittee,
		"audit_log_feedback":  appCfg.AuditLogFeedback,
	} {
		if !auditModes[v] {
			errs = append(errs, fmt.Errorf("%s must be one of all, db, log, off; got %q", key, v))
		}
	}
	return errors.Join(errs...)
}
