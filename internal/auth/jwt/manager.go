package jwt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pittmc/backend/internal/domain"
	"pittmc/backend/internal/storage"
)

// ErrInvalidToken covers every token defect: malformed, wrong signature,
// tampered, expired or issued for another purpose. Callers cannot tell them
// apart on purpose.
var ErrInvalidToken = errors.New("invalid token")

// secretBytes is the size of the random signing secret before hex encoding.
const secretBytes = 32

// expiryLeeway keeps a token valid during the second named by its exp claim.
const expiryLeeway = time.Second

// Claims is the payload of a whitelist bearer token.
type Claims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Manager mints and verifies bearer tokens. The HMAC secret lives in the KV
// store and is read (or created) on every call, so replicas sharing a store
// share a key and nothing is cached in process.
type Manager struct {
	kv        storage.KV
	ttl       time.Duration
	secretTTL time.Duration
	now       func() time.Time
}

// NewManager creates a Manager. Non-positive durations use the defaults
// (two hours for tokens, thirty days for the secret).
func NewManager(kv storage.KV, ttl, secretTTL time.Duration) *Manager {
	if ttl <= 0 {
		ttl = domain.TokenTTL
	}
	if secretTTL <= 0 {
		secretTTL = domain.SecretTTL
	}
	return &Manager{
		kv:        kv,
		ttl:       ttl,
		secretTTL: secretTTL,
		now:       time.Now,
	}
}

// WithClock overrides the time source used for iat/exp.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Mint signs a token for email valid for the configured TTL.
func (m *Manager) Mint(ctx context.Context, email string) (string, error) {
	secret, err := m.secret(ctx)
	if err != nil {
		return "", err
	}

	now := m.now()
	claims := Claims{
		Email:   email,
		Purpose: domain.TokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the email carried by a valid token. Any token defect yields
// ErrInvalidToken; a store failure yields a wrapped infrastructure error.
func (m *Manager) Verify(ctx context.Context, token string) (string, error) {
	secret, err := m.secret(ctx)
	if err != nil {
		return "", err
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
		jwt.WithLeeway(expiryLeeway),
	)
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Purpose != domain.TokenPurpose || claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

// secret reads the signing key from the store, creating it when absent.
// Two concurrent creators may both write; the value read back after the
// write is used so that both converge on whatever the store holds.
func (m *Manager) secret(ctx context.Context) ([]byte, error) {
	v, err := m.kv.Get(ctx, domain.SecretKey)
	if err == nil && v != "" {
		return []byte(v), nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("read signing secret: %w", err)
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}
	created := hex.EncodeToString(buf)

	if err := m.kv.Put(ctx, domain.SecretKey, created, m.secretTTL); err != nil {
		return nil, fmt.Errorf("store signing secret: %w", err)
	}

	stored, err := m.kv.Get(ctx, domain.SecretKey)
	if err != nil || stored == "" {
		return []byte(created), nil
	}
	return []byte(stored), nil
}
