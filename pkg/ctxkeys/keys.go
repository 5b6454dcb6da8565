// Package ctxkeys defines typed gin/context keys shared between middleware and handlers.
package ctxkeys

// Key is a typed context key to prevent collisions.
type Key string

// Auth context keys
const (
	KeyEmail          Key = "email"
	KeyUsername       Key = "username"
	KeyTokenID        Key = "token_id"
	KeyTokenExpiresAt Key = "token_expires_at"
)

// Request context keys
const (
	KeyRequestID Key = "request_id"
)
