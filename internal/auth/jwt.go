package auth

import (
	"fmt"
	"time"

	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Claims holds the custom JWT claims. Subject is the user's uid.
type Claims struct {
	jwt.RegisteredClaims
	Email string      `json:"email,omitempty"`
	Role  domain.Role `json:"role"`
}

// Principal is the signed-in identity attached to a request.
type Principal struct {
	UID   string
	Email string
	Role  domain.Role
}

// IsAdmin reports whether the principal may use the admin console.
func (p Principal) IsAdmin() bool { return p.Role == domain.RoleAdmin }

// JWTManager issues and validates identity tokens.
type JWTManager struct {
	secret      []byte
	userExpiry  time.Duration
	adminExpiry time.Duration
	clock       clockwork.Clock
}

// NewJWTManager creates a JWT manager with role-specific expiry durations.
func NewJWTManager(secret string, userExpiry, adminExpiry time.Duration, clock clockwork.Clock) *JWTManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTManager{
		secret:      []byte(secret),
		userExpiry:  userExpiry,
		adminExpiry: adminExpiry,
		clock:       clock,
	}
}

// GenerateToken creates a signed JWT for the principal.
func (m *JWTManager) GenerateToken(p Principal) (string, error) {
	if p.UID == "" {
		return "", fmt.Errorf("subject is required")
	}
	var expiry time.Duration
	switch p.Role {
	case domain.RoleUser:
		expiry = m.userExpiry
	case domain.RoleAdmin:
		expiry = m.adminExpiry
	default:
		return "", fmt.Errorf("unknown role: %s", p.Role)
	}

	now := m.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.New().String(),
		},
		Email: p.Email,
		Role:  p.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT, returning the principal if valid.
func (m *JWTManager) ValidateToken(tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.clock.Now), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Principal{}, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("token has no subject")
	}
	if !claims.Role.Valid() {
		return Principal{}, fmt.Errorf("unknown role: %s", claims.Role)
	}

	return Principal{UID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}
