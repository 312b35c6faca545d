package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/core/port"
)

const defaultAccessTokenTTL = 24 * time.Hour

var (
	// ErrKeyIDMissing indicates the token header carries no kid.
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
	// ErrInvalidToken covers every signature, claim or format failure on parse.
	ErrInvalidToken = errors.New("jwt: invalid token")
)

// AccessTokenClaims binds a bearer token to an account and its role.
type AccessTokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *AccessTokenClaims) AccountID() string {
	return c.Subject
}

// TokenIssuerConfig shapes minted tokens.
type TokenIssuerConfig struct {
	Issuer   string
	Audience string
	TTL      time.Duration
}

// TokenIssuer mints and parses RS256 access tokens.
type TokenIssuer struct {
	keys KeyProvider
	cfg  TokenIssuerConfig
	now  func() time.Time
}

// NewTokenIssuer constructs an issuer; a non-positive TTL falls back to 24h.
func NewTokenIssuer(keys KeyProvider, cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if keys == nil {
		return nil, errors.New("jwt: key provider required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("jwt: issuer is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultAccessTokenTTL
	}
	return &TokenIssuer{
		keys: keys,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the time source used for iat/nbf/exp and validation.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		i.now = now
	}
	return i
}

// Mint signs a token for account.
func (i *TokenIssuer) Mint(_ context.Context, account domain.Account) (string, error) {
	if strings.TrimSpace(account.ID) == "" {
		return "", errors.New("jwt: account id is required")
	}

	kid, key, err := i.keys.SigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	now := i.now()
	claims := AccessTokenClaims{
		Role: string(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
			ID:        uuid.NewString(),
		},
	}
	if i.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.cfg.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, audience and validity window.
func (i *TokenIssuer) Parse(raw string) (*AccessTokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(i.cfg.Audience))
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, ErrKeyIDMissing
		}
		return i.keys.VerificationKey(kid)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

var _ port.TokenIssuer = (*TokenIssuer)(nil)
