package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is malformed or badly signed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrMissingToken is returned when a request carries no token at all.
	ErrMissingToken = errors.New("no token provided")
)

// Verifier turns a bearer token into a verified identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Claims are the token claims understood by the chat service.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 tokens.
type JWTManager struct {
	config JWTConfig
	now    func() time.Time
}

// NewJWTManager creates a new JWTManager with the given configuration.
func NewJWTManager(config JWTConfig) *JWTManager {
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &JWTManager{config: config, now: time.Now}
}

// Issue signs a token for the identity. Missing roles default to RoleUser.
func (m *JWTManager) Issue(id Identity) (string, error) {
	if strings.TrimSpace(id.Username) == "" {
		return "", errors.New("username is required")
	}
	role := id.Role
	if role == "" {
		role = RoleUser
	}

	now := m.now()
	claims := Claims{
		Username: id.Username,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   id.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.Secret))
}

// Verify validates the token and returns the identity it carries.
func (m *JWTManager) Verify(tokenString string) (Identity, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithTimeFunc(m.now)}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Username == "" {
		return Identity{}, ErrInvalidToken
	}

	role := ParseRole(claims.Role)
	if role == "" {
		role = RoleUser
	}
	return Identity{Username: claims.Username, Role: role}, nil
}
