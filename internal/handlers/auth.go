package handlers

import (
	"errors"
	"net/http"

	"github.com/nrep-ug/mysql-monitor/internal/accounts"
	"github.com/nrep-ug/mysql-monitor/pkg/auth"
	"github.com/nrep-ug/mysql-monitor/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userSummary struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type loginResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    userSummary `json:"user"`
}

// HandleRegister creates an account if the email is not already in use.
func (h *DBWatchHandlers) HandleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields: username, email, password are required."})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at most 72 bytes."})
		return
	}
	if err != nil {
		middleware.GetContextLogger(c, h.logger).WithError(err).Error("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user."})
		return
	}

	err = h.accounts.Create(c.Request.Context(), accounts.Account{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	switch {
	case errors.Is(err, accounts.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered."})
		return
	case err != nil:
		middleware.GetContextLogger(c, h.logger).WithError(err).Error("Failed to store account")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user."})
		return
	}

	middleware.GetContextLogger(c, h.logger).WithField("username", req.Username).Info("Account registered")
	c.JSON(http.StatusOK, gin.H{"message": "User registered successfully."})
}

// HandleLogin exchanges valid credentials for a signed access token.
func (h *DBWatchHandlers) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required."})
		return
	}

	account, err := h.accounts.Get(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, accounts.ErrNotFound) {
		middleware.GetContextLogger(c, h.logger).WithError(err).Error("Failed to load account")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed."})
		return
	}
	if err != nil || !auth.CheckPassword(req.Password, account.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password."})
		return
	}

	token, _, err := auth.GenerateJWT(account.Email, account.Username, h.ttl, h.secret)
	if err != nil {
		middleware.GetContextLogger(c, h.logger).WithError(err).Error("Failed to sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed."})
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Message: "Login successful.",
		Token:   token,
		User:    userSummary{Username: account.Username, Email: account.Email},
	})
}

// HandleLogout revokes the presented token until it expires.
func (h *DBWatchHandlers) HandleLogout(c *gin.Context) {
	claims := auth.ClaimsFromContext(c)
	if err := h.authn.Revoke(c.Request.Context(), claims); err != nil {
		middleware.GetContextLogger(c, h.logger).WithError(err).Error("Failed to revoke token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out."})
}
