package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nrep-ug/mysql-monitor/pkg/ctxkeys"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"
)

// Authenticator validates access tokens by signature, expiry and revocation.
type Authenticator struct {
	secret   []byte
	denylist Denylist
	logger   logging.Logger
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithLogger sets the logger used to report denylist failures.
func WithLogger(logger logging.Logger) AuthenticatorOption {
	return func(a *Authenticator) { a.logger = logger }
}

// NewAuthenticator returns an Authenticator. A nil denylist disables revocation checks.
func NewAuthenticator(secret []byte, denylist Denylist, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{secret: secret, denylist: denylist, logger: logging.NewDiscardLogger()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate returns the claims of a valid, unexpired, unrevoked token.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidJWT
	}
	claims, err := ValidateJWT(token, a.secret)
	if err != nil {
		return nil, err
	}
	if a.denylist != nil && claims.ID != "" {
		revoked, err := a.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Fail open when the denylist is unreachable.
			a.logger.WithError(err).WithFields(logging.Fields{
				"token_id": claims.ID,
				"email":    claims.Email,
			}).Warn("Token denylist unavailable; accepting token without revocation check")
			return claims, nil
		}
		if revoked {
			return nil, ErrRevokedJWT
		}
	}
	return claims, nil
}

// Revoke invalidates the token identified by claims until its natural expiry.
func (a *Authenticator) Revoke(ctx context.Context, claims *Claims) error {
	if a.denylist == nil || claims == nil || claims.ID == "" {
		return nil
	}
	until := time.Now().Add(DefaultTokenTTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return a.denylist.Revoke(ctx, claims.ID, until)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// JWTAuthMiddleware rejects requests without a valid bearer token with
// 401 (missing) or 403 (invalid, expired or revoked), and stores the claims
// on the gin context otherwise.
func JWTAuthMiddleware(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token provided."})
			return
		}

		claims, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			msg := "Invalid or expired token."
			if errors.Is(err, ErrRevokedJWT) {
				msg = "Token has been revoked."
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msg})
			return
		}

		SetClaims(c, claims)
		c.Next()
	}
}

// SetClaims copies the token claims onto the gin context.
func SetClaims(c *gin.Context, claims *Claims) {
	c.Set(string(ctxkeys.KeyEmail), claims.Email)
	c.Set(string(ctxkeys.KeyUsername), claims.Username)
	c.Set(string(ctxkeys.KeyTokenID), claims.ID)
	if claims.ExpiresAt != nil {
		c.Set(string(ctxkeys.KeyTokenExpiresAt), claims.ExpiresAt.Time)
	}
}

// ClaimsFromContext rebuilds the claims stored by JWTAuthMiddleware.
func ClaimsFromContext(c *gin.Context) *Claims {
	email := c.GetString(string(ctxkeys.KeyEmail))
	if email == "" {
		return nil
	}
	claims := &Claims{
		Email:    email,
		Username: c.GetString(string(ctxkeys.KeyUsername)),
	}
	claims.ID = c.GetString(string(ctxkeys.KeyTokenID))
	if exp, ok := c.Get(string(ctxkeys.KeyTokenExpiresAt)); ok {
		if t, ok := exp.(time.Time); ok {
			claims.ExpiresAt = jwt.NewNumericDate(t)
		}
	}
	return claims
}
