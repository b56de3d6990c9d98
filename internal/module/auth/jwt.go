package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents session token claims.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// JWTConfig holds session token configuration.
type JWTConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// DefaultJWTConfig returns default session token configuration.
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		Expiry: 30 * 24 * time.Hour,
		Issuer: "album",
	}
}

// JWTManager signs and validates session tokens.
type JWTManager struct {
	config *JWTConfig
}

// NewJWTManager creates a new JWT manager.
func NewJWTManager(config *JWTConfig) *JWTManager {
	defaults := DefaultJWTConfig()
	if config == nil {
		return &JWTManager{config: defaults}
	}
	c := *config
	if c.Expiry == 0 {
		c.Expiry = defaults.Expiry
	}
	if c.Issuer == "" {
		c.Issuer = defaults.Issuer
	}
	return &JWTManager{config: &c}
}

// GenerateSessionToken signs a token naming sessionID and its subject.
func (m *JWTManager) GenerateSessionToken(sessionID, subject string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.Expiry)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// ValidateSessionToken validates a session token and returns its claims.
func (m *JWTManager) ValidateSessionToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(m.config.Issuer))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidTokenClaims
	}

	return claims, nil
}

// GetExpiry returns the session token lifetime.
func (m *JWTManager) GetExpiry() time.Duration {
	return m.config.Expiry
}

// SubjectFromIdentityToken reads the sub claim of a provider identity token.
// The signature is not checked; the identity pool verifies it on exchange.
func SubjectFromIdentityToken(idToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingIdentityToken, err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: no subject", ErrMissingIdentityToken)
	}
	return sub, nil
}
