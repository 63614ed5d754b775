package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v4"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/config"
)

const (
	AccessTokenCookie = "access_token"
	defaultTokenTTL   = 12 * time.Hour
)

var (
	ErrMissingToken  = errors.New("missing_token")
	ErrInvalidToken  = errors.New("invalid_token")
	ErrNotConfigured = errors.New("auth_not_configured")
)

// Claims is the bearer token payload.
type Claims struct {
	jwt.RegisteredClaims
	GarageID string `json:"garage_id"`
	Role     string `json:"role"`
}

type TokenService struct {
	secret []byte
	clock  clock.Clock
}

func NewTokenService(cfg config.Config, clk clock.Clock) (*TokenService, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("%w: AUTH_JWT_SECRET is required in production", ErrNotConfigured)
		}
		secret = "garageflow-dev-secret"
	}
	return &TokenService{secret: []byte(secret), clock: clk}, nil
}

// Verify parses an HS256 token and returns its principal.
func (s *TokenService) Verify(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrMissingToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	// Expiry is checked against the injected clock, not the wall clock.
	if claims.ExpiresAt != nil && !s.clock.Now().Before(claims.ExpiresAt.Time) {
		return Principal{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	garageID, err := snowflake.ParseString(strings.TrimSpace(claims.GarageID))
	if err != nil || garageID == 0 {
		return Principal{}, fmt.Errorf("%w: missing garage", ErrInvalidToken)
	}
	role := Role(strings.ToLower(strings.TrimSpace(claims.Role)))
	if !role.Valid() {
		return Principal{}, fmt.Errorf("%w: unknown role", ErrInvalidToken)
	}
	return Principal{Subject: subject, GarageID: garageID, Role: role}, nil
}

// Issue signs a token for p. Used by the seed command and tests; the API does
// not hand out tokens.
func (s *TokenService) Issue(p Principal, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := s.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		GarageID: p.GarageID.String(),
		Role:     string(p.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the access_token cookie.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			return strings.TrimSpace(header[7:])
		}
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
