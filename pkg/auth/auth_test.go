package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !CheckPassword("secret", hash) {
		t.Fatalf("password should match")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("password should not match")
	}
}

func TestPasswordRejectsPlaintextAndOverlong(t *testing.T) {
	if CheckPassword("secret", "secret") {
		t.Fatalf("plaintext stored value must not match")
	}
	if _, err := HashPassword(strings.Repeat("x", 73), bcrypt.MinCost); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if _, err := HashPassword(strings.Repeat("x", 72), bcrypt.MinCost); err != nil {
		t.Fatalf("72 bytes should hash: %v", err)
	}
}

func TestJWTGenerateValidate(t *testing.T) {
	secret := []byte("s3cr3t")
	token, issued, err := GenerateJWT("u@example.com", "alice", time.Hour, secret)
	if err != nil {
		t.Fatalf("generate jwt: %v", err)
	}
	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("validate jwt: %v", err)
	}
	if claims.Email != "u@example.com" || claims.Username != "alice" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Fatalf("expected token id to round-trip, got %q vs %q", claims.ID, issued.ID)
	}
	if d := time.Until(claims.ExpiresAt.Time); d <= 59*time.Minute || d > time.Hour {
		t.Fatalf("unexpected expiry window %v", d)
	}
}

func TestJWTRejectsWrongSecretAndExpiry(t *testing.T) {
	secret := []byte("s3cr3t")
	token, _, err := GenerateJWT("u@example.com", "alice", time.Hour, []byte("other"))
	if err != nil {
		t.Fatalf("generate jwt: %v", err)
	}
	if _, err := ValidateJWT(token, secret); !errors.Is(err, ErrInvalidJWT) {
		t.Fatalf("expected ErrInvalidJWT, got %v", err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Email: "u@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ValidateJWT(signed, secret); !errors.Is(err, ErrExpiredJWT) {
		t.Fatalf("expected ErrExpiredJWT, got %v", err)
	}
}

func TestJWTRejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Email: "u@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ValidateJWT(signed, []byte("s3cr3t")); err == nil {
		t.Fatalf("expected none-alg token to be rejected")
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "abc",
		"Bearer":      "",
		"Basic abc":   "",
		"":            "",
		"Bearer a b":  "",
		"Bearer  abc": "abc",
	}
	for header, want := range cases {
		if got := BearerToken(header); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestMemoryDenylist(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenylist()
	now := time.Now()
	d.now = func() time.Time { return now }

	if err := d.Revoke(ctx, "tok-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := d.Revoke(ctx, "tok-past", now.Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := d.IsRevoked(ctx, "tok-1"); !revoked {
		t.Fatalf("expected tok-1 revoked")
	}
	if revoked, _ := d.IsRevoked(ctx, "tok-past"); revoked {
		t.Fatalf("already-expired token should not be tracked")
	}

	now = now.Add(2 * time.Minute)
	if revoked, _ := d.IsRevoked(ctx, "tok-1"); revoked {
		t.Fatalf("expected revocation to lapse after token expiry")
	}
}

func TestRedisDenylist(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	d := NewRedisDenylist(client, "")
	if err := d.Revoke(ctx, "tok-1", time.Now().Add(30*time.Second)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !mr.Exists("dbwatch:revoked:tok-1") {
		t.Fatalf("expected key in redis")
	}
	revoked, err := d.IsRevoked(ctx, "tok-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}

	mr.FastForward(31 * time.Second)
	revoked, err = d.IsRevoked(ctx, "tok-1")
	if err != nil || revoked {
		t.Fatalf("expected revocation to expire, got %v %v", revoked, err)
	}
}

func TestAuthenticatorRevoke(t *testing.T) {
	ctx := context.Background()
	secret := []byte("s3cr3t")
	a := NewAuthenticator(secret, NewMemoryDenylist())

	token, _, err := GenerateJWT("u@example.com", "alice", time.Hour, secret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := a.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := a.Revoke(ctx, claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := a.Authenticate(ctx, token); !errors.Is(err, ErrRevokedJWT) {
		t.Fatalf("expected ErrRevokedJWT, got %v", err)
	}
	if _, err := a.Authenticate(ctx, ""); err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("expected invalid for empty token, got %v", err)
	}
}

type unreachableDenylist struct{}

func (unreachableDenylist) Revoke(context.Context, string, time.Time) error {
	return errors.New("dial tcp: connection refused")
}

func (unreachableDenylist) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

func TestAuthenticatorLogsDenylistOutage(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	secret := []byte("s3cr3t")
	a := NewAuthenticator(secret, unreachableDenylist{}, WithLogger(logger))

	token, issued, err := GenerateJWT("u@example.com", "alice", time.Hour, secret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := a.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("expected token to be accepted during an outage, got %v", err)
	}
	if claims.ID != issued.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning for the denylist outage, got %+v", entry)
	}
	if entry.Data["token_id"] != issued.ID {
		t.Fatalf("expected token_id field, got %v", entry.Data)
	}
	if _, ok := entry.Data[logrus.ErrorKey]; !ok {
		t.Fatalf("expected error field, got %v", entry.Data)
	}
}
