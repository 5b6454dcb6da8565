package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nrep-ug/mysql-monitor/internal/accounts"
	"github.com/nrep-ug/mysql-monitor/internal/broadcast"
	"github.com/nrep-ug/mysql-monitor/internal/status"
	"github.com/nrep-ug/mysql-monitor/pkg/auth"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// StatusSource is the monitor: current snapshot plus ordered subscription.
type StatusSource interface {
	Snapshot() status.Snapshot
	Subscribe(admit func(initial status.Snapshot) error) error
}

// Admitter registers a WebSocket connection with its first frame.
type Admitter interface {
	Admit(conn *websocket.Conn, initial broadcast.Message) (*broadcast.Client, error)
}

// Remediator runs the restart command and returns its output.
type Remediator interface {
	Remediate(ctx context.Context) (string, error)
}

// LogTailer returns the last n lines of the database error log.
type LogTailer interface {
	Tail(n int) string
}

// HostReporter renders host resource usage as text.
type HostReporter interface {
	Report(ctx context.Context) (string, error)
}

// Deps are the collaborators of the HTTP surface. HostInfo may be nil.
type Deps struct {
	Accounts      accounts.Store
	Authenticator *auth.Authenticator
	JWTSecret     []byte
	TokenTTL      time.Duration
	Status        StatusSource
	Hub           Admitter
	Remediator    Remediator
	Diagnostics   LogTailer
	HostInfo      HostReporter
	Logger        logging.Logger
}

// DBWatchHandlers contains the HTTP handlers for the service
type DBWatchHandlers struct {
	accounts accounts.Store
	authn    *auth.Authenticator
	secret   []byte
	ttl      time.Duration
	status   StatusSource
	hub      Admitter
	remedy   Remediator
	diag     LogTailer
	host     HostReporter
	logger   logging.Logger
}

// NewDBWatchHandlers creates a new handlers instance
func NewDBWatchHandlers(d Deps) *DBWatchHandlers {
	ttl := d.TokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}
	return &DBWatchHandlers{
		accounts: d.Accounts,
		authn:    d.Authenticator,
		secret:   d.JWTSecret,
		ttl:      ttl,
		status:   d.Status,
		hub:      d.Hub,
		remedy:   d.Remediator,
		diag:     d.Diagnostics,
		host:     d.HostInfo,
		logger:   d.Logger,
	}
}

// Register mounts every route on r.
func (h *DBWatchHandlers) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/register", h.HandleRegister)
	api.POST("/login", h.HandleLogin)

	protected := api.Group("")
	protected.Use(auth.JWTAuthMiddleware(h.authn))
	protected.POST("/logout", h.HandleLogout)
	protected.GET("/status", h.HandleStatus)
	protected.POST("/restart", h.HandleRestart)
	protected.GET("/failure-reason", h.HandleFailureReason)
	if h.host != nil {
		protected.GET("/system-info", h.HandleSystemInfo)
	}

	r.GET("/ws", h.HandleWebSocket)
	r.NoRoute(h.HandleNotFound)
}

// HandleNotFound provides a custom 404 handler
func (h *DBWatchHandlers) HandleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found."})
}
