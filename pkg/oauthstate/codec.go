// Package oauthstate signs and verifies the state parameter that carries the
// requesting user's identity through the consent dialog redirect.
package oauthstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

const (
	DefaultTTL = 10 * time.Minute

	issuer   = "fern"
	audience = "meta-oauth-callback"

	nonceKeyPrefix = "oauthstate:nonce:"
	minSecretLen   = 32
)

// ErrInvalidState covers every state that must not be honoured: malformed,
// badly signed, expired or already used.
var ErrInvalidState = errors.New("invalid oauth state")

// NonceStore remembers consumed nonces until they would have expired anyway.
type NonceStore interface {
	ConsumeOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Config struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

type claims struct {
	jwt.RegisteredClaims
}

// Codec issues HS256 state tokens of the form {sub, jti, iat, exp} and accepts
// each one at most once.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	nonces NonceStore
	logger ectologger.Logger
}

func NewCodec(cfg Config, nonces NonceStore, logger ectologger.Logger) (*Codec, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("state secret must be at least %d bytes", minSecretLen)
	}
	if nonces == nil {
		return nil, errors.New("state nonce store is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		now:    cfg.Now,
		nonces: nonces,
		logger: logger,
	}, nil
}

// Encode returns a signed state for userID.
func (c *Codec) Encode(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("encode state: user id is required")
	}

	now := c.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// Decode verifies the state and consumes its nonce, returning the user id it was issued for.
// Any rejection wraps ErrInvalidState; a nonce store failure does not.
func (c *Codec) Decode(ctx context.Context, state string) (string, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return "", c.reject(ctx, "malformed", "state is empty")
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(state, &parsed, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return "", c.reject(ctx, "signature", "signature is invalid")
		}
		return "", c.reject(ctx, "malformed", err.Error())
	}

	if parsed.Issuer != issuer || !audienceContains(parsed.Audience, audience) {
		return "", c.reject(ctx, "mismatch", "issuer or audience mismatch")
	}
	if parsed.Subject == "" || parsed.ID == "" || parsed.ExpiresAt == nil {
		return "", c.reject(ctx, "malformed", "required claims missing")
	}

	now := c.now().UTC()
	remaining := parsed.ExpiresAt.Time.Sub(now)
	if remaining <= 0 {
		return "", c.reject(ctx, "expired", "state is expired")
	}
	if parsed.IssuedAt != nil && parsed.IssuedAt.Time.After(now.Add(time.Minute)) {
		return "", c.reject(ctx, "malformed", "state issued in the future")
	}

	fresh, err := c.nonces.ConsumeOnce(ctx, nonceKeyPrefix+parsed.ID, remaining)
	if err != nil {
		metrics.StateRejectedTotal.WithLabelValues("store_error").Inc()
		return "", fmt.Errorf("consume state nonce: %w", err)
	}
	if !fresh {
		return "", c.reject(ctx, "replayed", "state was already used")
	}

	return parsed.Subject, nil
}

func (c *Codec) reject(ctx context.Context, reason, detail string) error {
	metrics.StateRejectedTotal.WithLabelValues(reason).Inc()
	c.logger.WithContext(ctx).WithField("reason", reason).Warnf("Rejected oauth state: %s", detail)
	return fmt.Errorf("%w: %s", ErrInvalidState, detail)
}

func audienceContains(values jwt.ClaimStrings, expected string) bool {
	for _, v := range values {
		if v == expected {
			return true
		}
	}
	return false
}
