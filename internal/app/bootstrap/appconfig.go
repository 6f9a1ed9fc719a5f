// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// ports, TLS, logging and CORS; everything specific to the hiring-committee
// workflow lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Email/SMTP configuration. With no host, notifications are logged instead of sent.
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Public site used in feedback links and email copy
	BaseURL  string // e.g., "https://careers.example.com"
	SiteName string

	// Committee workflow
	FeedbackTokenTTL      time.Duration // lifetime of a feedback link
	ReminderSweepInterval time.Duration // how often the reminder sweep runs
	DispatchConcurrency   int           // parallel sends per dispatch
	FeedbackRateLimit     int           // feedback link requests per client IP per minute

	// Timeouts
	NotifyTimeout time.Duration

	// Audit logging: "all", "db", "log" or "off"
	AuditLogCommittee string
	AuditLogFeedback  string

	MetricsEnabled bool
}

// MailTransport names how notifications leave the process.
func (c AppConfig) MailTransport() string {
	if c.MailSMTPHost == "" {
		return "log"
	}
	return "smtp"
}
