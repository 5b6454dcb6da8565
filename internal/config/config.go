package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nrep-ug/mysql-monitor/pkg/auth"
	"github.com/nrep-ug/mysql-monitor/pkg/config"
	"github.com/nrep-ug/mysql-monitor/pkg/database"
	"github.com/nrep-ug/mysql-monitor/pkg/email"
)

// Account store kinds.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

// Config stores environment configuration for dbwatch.
type Config struct {
	Port string

	DBDriver string
	Database database.Target

	CheckInterval  time.Duration
	ProbeTimeout   time.Duration
	ErrorLogPath   string
	RestartCommand string

	JWTSecret string
	TokenTTL  time.Duration

	SMTP       email.Config
	AlertEmail string

	AccountStore     string
	AccountStorePath string
	RedisURL         string
}

// LoadConfig loads the dbwatch configuration from environment variables.
func LoadConfig() Config {
	driver := strings.ToLower(config.GetEnv("DB_DRIVER", database.DriverMySQL))
	defaultPort := 3306
	if driver == database.DriverPostgres {
		defaultPort = 5432
	}

	store := strings.ToLower(config.GetEnv("ACCOUNT_STORE", StoreSQLite))
	defaultStorePath := "accounts.db"
	if store == StoreFile {
		defaultStorePath = "users.json"
	}

	probeTimeout := config.GetEnvDuration("PROBE_TIMEOUT", 5*time.Second)
	smtpUser := config.GetEnv("SMTP_USER", "")

	return Config{
		Port:     config.GetEnv("PORT", "3006"),
		DBDriver: driver,
		Database: database.Target{
			Host:     config.GetEnv("DB_HOST", "localhost"),
			Port:     config.GetEnvInt("DB_PORT", defaultPort),
			User:     config.GetEnv("DB_USER", "root"),
			Password: config.GetEnv("DB_PASSWORD", ""),
			Name:     config.GetEnv("DB_NAME", "test"),
			Timeout:  probeTimeout,
		},
		CheckInterval:  config.GetEnvDuration("CHECK_INTERVAL", 30*time.Second),
		ProbeTimeout:   probeTimeout,
		ErrorLogPath:   config.GetEnvFirst("/var/log/mysql/error.log", "DB_ERROR_LOG_PATH", "MYSQL_ERROR_LOG_PATH"),
		RestartCommand: config.GetEnvFirst("sudo service mysql restart", "RESTART_COMMAND", "MYSQL_RESTART_COMMAND"),
		JWTSecret:      config.GetEnv("JWT_SECRET", ""),
		TokenTTL:       config.GetEnvDuration("TOKEN_TTL", auth.DefaultTokenTTL),
		SMTP: email.Config{
			Host:     config.GetEnv("SMTP_HOST", ""),
			Port:     config.GetEnv("SMTP_PORT", "587"),
			User:     smtpUser,
			Password: config.GetEnv("SMTP_PASSWORD", ""),
			From:     config.GetEnv("FROM_EMAIL", smtpUser),
			FromName: config.GetEnv("FROM_NAME", "DB Monitor"),
		},
		AlertEmail:       config.GetEnv("ALERT_EMAIL", ""),
		AccountStore:     store,
		AccountStorePath: config.GetEnv("ACCOUNT_STORE_PATH", defaultStorePath),
		RedisURL:         config.GetEnv("REDIS_URL", ""),
	}
}

// Validate reports every startup configuration error at once.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.DBDriver != database.DriverMySQL && c.DBDriver != database.DriverPostgres {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", database.DriverMySQL, database.DriverPostgres, c.DBDriver))
	}
	if c.AccountStore != StoreSQLite && c.AccountStore != StoreFile {
		errs = append(errs, fmt.Errorf("ACCOUNT_STORE must be %q or %q, got %q", StoreSQLite, StoreFile, c.AccountStore))
	}
	if c.AccountStorePath == "" {
		errs = append(errs, errors.New("ACCOUNT_STORE_PATH is required"))
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be a valid TCP port, got %q", c.Port))
	}
	if c.RestartCommand == "" {
		errs = append(errs, errors.New("RESTART_COMMAND is required"))
	}
	return errors.Join(errs...)
}

// DSN renders the monitored database DSN.
func (c Config) DSN() (string, error) {
	return database.DSN(c.DBDriver, c.Database)
}

// NotificationsEnabled reports whether transition emails will be sent.
func (c Config) NotificationsEnabled() bool {
	return c.SMTP.Configured() && c.AlertEmail != ""
}

// Summary is the non-secret configuration for health reporting.
func (c Config) Summary() map[string]string {
	return map[string]string{
		"DB_DRIVER":          c.DBDriver,
		"DB_HOST":            c.Database.Host,
		"CHECK_INTERVAL":     c.CheckInterval.String(),
		"ACCOUNT_STORE":      c.AccountStore,
		"ACCOUNT_STORE_PATH": c.AccountStorePath,
		"JWT_SECRET":         redact(c.JWTSecret),
		"SMTP_HOST":          c.SMTP.Host,
		"ALERT_EMAIL":        c.AlertEmail,
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "set"
}
