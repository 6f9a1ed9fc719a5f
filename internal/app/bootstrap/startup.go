// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/recruithub/internal/app/committees"
	"github.com/dalemusser/recruithub/internal/app/store/audit"
	"github.com/dalemusser/recruithub/internal/app/system/auditlog"
	"github.com/dalemusser/recruithub/internal/app/system/mailer"
	"github.com/dalemusser/recruithub/internal/app/system/metrics"
	"github.com/dalemusser/recruithub/internal/app/system/notify"
	"github.com/dalemusser/recruithub/internal/app/system/ratelimit"
	"github.com/dalemusser/recruithub/internal/app/system/tasks"
	"github.com/dalemusser/recruithub/internal/app/system/timeouts"
	"github.com/dalemusser/recruithub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// services is everything built once at startup and shared by the HTTP
// handler and the background jobs.
type services struct {
	orchestrator *committees.Orchestrator
	registry     *prometheus.Registry
	scheduler    *workers.Scheduler
	limiter      *ratelimit.Limiter
}

var (
	svcMu sync.Mutex
	svc   *services
)

// Startup builds the committee workflow and starts the background jobs. It
// runs after DB connections and schema setup are complete, before the HTTP
// handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Notify: appCfg.NotifyTimeout})
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}

	s := newServices(appCfg, deps, logger)
	s.scheduler.Start()

	svcMu.Lock()
	svc = s
	svcMu.Unlock()
	return nil
}

func newServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *services {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auditLog := auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Committee: appCfg.AuditLogCommittee,
		Feedback:  appCfg.AuditLogFeedback,
	})

	var sender notify.Sender
	if appCfg.MailTransport() == "smtp" {
		sender = mailer.New(mailer.Config{
			Host:     appCfg.MailSMTPHost,
			Port:     appCfg.MailSMTPPort,
			User:     appCfg.MailSMTPUser,
			Pass:     appCfg.MailSMTPPass,
			From:     appCfg.MailFrom,
			FromName: appCfg.MailFromName,
		}, logger)
	} else {
		logger.Warn("mail_smtp_host not set; notifications will be logged, not sent")
		sender = notify.LogSender{Log: logger}
	}

	core := committees.NewService(committees.Deps{
		DB:      deps.MongoDatabase,
		Log:     logger,
		Audit:   auditLog,
		Metrics: metrics.New(reg),
	})
	orch := committees.NewOrchestrator(core, notify.NewMail(sender, appCfg.SiteName, logger), nil, committees.Config{
		BaseURL:     appCfg.BaseURL,
		TokenTTL:    appCfg.FeedbackTokenTTL,
		Concurrency: appCfg.DispatchConcurrency,
	})

	scheduler := workers.NewScheduler(logger,
		tasks.ReminderSweepJob(orch, logger, appCfg.ReminderSweepInterval),
		tasks.TokenExpiryJob(orch.Tokens(), logger),
	)

	return &services{
		orchestrator: orch,
		registry:     reg,
		scheduler:    scheduler,
		limiter:      ratelimit.New(appCfg.FeedbackRateLimit, time.Minute),
	}
}

// current returns the services built by Startup, or builds an unstarted set
// when Startup has not run.
func current(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *services {
	svcMu.Lock()
	defer svcMu.Unlock()
	if svc == nil {
		svc = newServices(appCfg, deps, logger)
	}
	return svc
}
