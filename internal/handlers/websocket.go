package handlers

import (
	"errors"
	"net/http"

	"github.com/nrep-ug/mysql-monitor/internal/broadcast"
	"github.com/nrep-ug/mysql-monitor/internal/monitor"
	"github.com/nrep-ug/mysql-monitor/internal/status"
	"github.com/nrep-ug/mysql-monitor/pkg/auth"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"
	"github.com/nrep-ug/mysql-monitor/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// HandleWebSocket authenticates the token query parameter, upgrades, and
// admits the connection with the current snapshot as its first frame.
// Rejected tokens never reach the upgrade.
func (h *DBWatchHandlers) HandleWebSocket(c *gin.Context) {
	log := middleware.GetContextLogger(c, h.logger)

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No token provided."})
		return
	}
	claims, err := h.authn.Authenticate(c.Request.Context(), token)
	if err != nil {
		msg := "Invalid or expired token."
		if errors.Is(err, auth.ErrRevokedJWT) {
			msg = "Token has been revoked."
		}
		log.WithError(err).Warn("WebSocket authentication failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}

	conn, err := broadcast.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	err = h.status.Subscribe(func(initial status.Snapshot) error {
		_, err := h.hub.Admit(conn, broadcast.Message{Type: monitor.MessageType, Data: initial})
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to admit WebSocket client")
		conn.Close()
		return
	}
	log.WithFields(logging.Fields{"username": claims.Username}).Info("WebSocket subscriber admitted")
}
