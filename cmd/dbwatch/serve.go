package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nrep-ug/mysql-monitor/internal/accounts"
	"github.com/nrep-ug/mysql-monitor/internal/broadcast"
	appconfig "github.com/nrep-ug/mysql-monitor/internal/config"
	"github.com/nrep-ug/mysql-monitor/internal/diagnostics"
	"github.com/nrep-ug/mysql-monitor/internal/handlers"
	"github.com/nrep-ug/mysql-monitor/internal/metrics"
	"github.com/nrep-ug/mysql-monitor/internal/monitor"
	"github.com/nrep-ug/mysql-monitor/internal/notify"
	"github.com/nrep-ug/mysql-monitor/internal/probe"
	"github.com/nrep-ug/mysql-monitor/internal/remediate"
	"github.com/nrep-ug/mysql-monitor/internal/status"
	"github.com/nrep-ug/mysql-monitor/internal/sysinfo"
	"github.com/nrep-ug/mysql-monitor/pkg/auth"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"
	"github.com/nrep-ug/mysql-monitor/pkg/monitoring"
	"github.com/nrep-ug/mysql-monitor/pkg/redis"
	"github.com/nrep-ug/mysql-monitor/pkg/server"
	"github.com/nrep-ug/mysql-monitor/pkg/version"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor loop and the HTTP/WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLoggerWithService("dbwatch")
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			runServe(cmd.Context(), cfg, logger)
			return nil
		},
	}
}

func runServe(parent context.Context, cfg appconfig.Config, logger logging.Logger) {

	logger.WithFields(logging.Fields{
		"version": version.String(),
		"driver":  cfg.DBDriver,
		"host":    cfg.Database.Host,
	}).Info("Starting dbwatch")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("dbwatch", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("dbwatch", version.Version, version.GitCommit)
	metricsCollector.SkipPaths("/ws")
	serviceMetrics := metrics.New(metricsCollector)

	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(cfg.Summary()))

	// Token revocation
	var denylist auth.Denylist = auth.NewMemoryDenylist()
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL, redis.WithClientName("dbwatch"))
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer client.Close()
		denylist = auth.NewRedisDenylist(client, "")
		healthChecker.AddCheck("redis", monitoring.PingHealthCheck("redis", redis.Pinger(client)))
		logger.Info("Using Redis token denylist")
	}
	authenticator := auth.NewAuthenticator([]byte(cfg.JWTSecret), denylist, auth.WithLogger(logger))

	// Account store
	accountStore, err := openAccountStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open account store")
	}
	defer accountStore.Close()
	healthChecker.AddCheck("accounts", monitoring.PingHealthCheck("account store", accountStore.Ping))

	// Monitor loop
	dsn, err := cfg.DSN()
	if err != nil {
		logger.WithError(err).Fatal("Failed to build database DSN")
	}
	dbProbe := probe.New(cfg.DBDriver, dsn, logger,
		probe.WithTimeout(cfg.ProbeTimeout),
		probe.WithMetrics(serviceMetrics),
	)
	statusStore := status.NewStore()
	hub := broadcast.NewHub(logger, serviceMetrics)
	notifier := notify.NewEmail(cfg.SMTP, cfg.AlertEmail, logger, serviceMetrics)
	if !notifier.Enabled() {
		logger.Warn("SMTP_HOST or ALERT_EMAIL not set; transition alerts are disabled")
	}
	dbMonitor := monitor.New(dbProbe, statusStore, notifier, hub, logger,
		monitor.WithInterval(cfg.CheckInterval),
		monitor.WithMetrics(serviceMetrics),
	)
	remediator := remediate.New(cfg.RestartCommand, statusStore, logger,
		remediate.WithMetrics(serviceMetrics))
	errorLog := diagnostics.NewReader(cfg.ErrorLogPath, logger)
	logger.WithFields(monitorFields(cfg, dbMonitor, remediator, errorLog)).Info("Monitor configured")

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "dbwatch", healthChecker, metricsCollector)
	handlers.NewDBWatchHandlers(handlers.Deps{
		Accounts:      accountStore,
		Authenticator: authenticator,
		JWTSecret:     []byte(cfg.JWTSecret),
		TokenTTL:      cfg.TokenTTL,
		Status:        dbMonitor,
		Hub:           hub,
		Remediator:    remediator,
		Diagnostics:   errorLog,
		HostInfo:      sysinfo.NewCollector("/", logger),
		Logger:        logger,
	}).Register(router)

	go dbMonitor.Run(ctx)

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("dbwatch", cfg.Port)
	serverConfig.Port = cfg.Port
	if err := server.Start(ctx, serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}

	hub.Close()
	notifier.Wait()
	logger.Info("dbwatch stopped")
}

// monitorFields describes the running monitor for the startup log.
func monitorFields(cfg appconfig.Config, m *monitor.Monitor, r *remediate.Remediator, d *diagnostics.Reader) logging.Fields {
	return logging.Fields{
		"interval":        m.Interval().String(),
		"probe_timeout":   cfg.ProbeTimeout.String(),
		"restart_command": r.Command(),
		"error_log":       d.Path(),
		"alerts_enabled":  cfg.NotificationsEnabled(),
		"alert_email":     cfg.AlertEmail,
	}
}

func openAccountStore(ctx context.Context, cfg appconfig.Config, logger logging.Logger) (accounts.Store, error) {
	if cfg.AccountStore == appconfig.StoreFile {
		store, err := accounts.OpenFile(cfg.AccountStorePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := accounts.OpenSQLite(ctx, cfg.AccountStorePath, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}
