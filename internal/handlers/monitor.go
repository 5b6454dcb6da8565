package handlers

import (
	"errors"
	"net/http"

	"github.com/nrep-ug/mysql-monitor/internal/diagnostics"
	"github.com/nrep-ug/mysql-monitor/internal/remediate"
	"github.com/nrep-ug/mysql-monitor/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// HandleStatus returns the current snapshot. It does not probe.
func (h *DBWatchHandlers) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Snapshot())
}

// HandleRestart runs the remediation command.
func (h *DBWatchHandlers) HandleRestart(c *gin.Context) {
	log := middleware.GetContextLogger(c, h.logger)
	log.Warn("Database restart requested")

	output, err := h.remedy.Remediate(c.Request.Context())
	if err != nil {
		details := err.Error()
		var rerr *remediate.Error
		if errors.As(err, &rerr) {
			details = rerr.Output
		}
		log.WithError(err).Error("Database restart failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to restart database.",
			"details": details,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Database restart command issued.",
		"output":  output,
	})
}

// HandleFailureReason returns the tail of the database error log.
func (h *DBWatchHandlers) HandleFailureReason(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"reason": h.diag.Tail(diagnostics.DefaultLines)})
}

// HandleSystemInfo returns host resource usage as text.
func (h *DBWatchHandlers) HandleSystemInfo(c *gin.Context) {
	info, err := h.host.Report(c.Request.Context())
	if err != nil {
		middleware.GetContextLogger(c, h.logger).WithError(err).Error("Failed to collect system info")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect system info."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"info": info})
}
