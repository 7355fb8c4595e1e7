package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"portfolio-stream/src/helpers"

	"github.com/golang-jwt/jwt/v5"
)

// UserID accepts both string and numeric "id" claims.
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id claim must be a string or number: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

type Claims struct {
	UserID UserID `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// Identity prefers the "id" claim and falls back to "sub".
func (c *Claims) Identity() string {
	if c.UserID != "" {
		return string(c.UserID)
	}
	return c.Subject
}

// -----------------------------------------------------------------------------

type JWTManager struct {
	secretKey     []byte
	issuer        string
	tokenDuration time.Duration
}

func NewJWTManager(secretKey, issuer string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		issuer:        issuer,
		tokenDuration: tokenDuration,
	}
}

// -----------------------------------------------------------------------------

// Generate creates a signed HS256 token for userID.
func (manager *JWTManager) Generate(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: UserID(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(manager.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    manager.issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(manager.secretKey)
}

// -----------------------------------------------------------------------------

// Verify validates the JWT token and returns the claims
func (manager *JWTManager) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if manager.issuer != "" {
		opts = append(opts, jwt.WithIssuer(manager.issuer))
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return manager.secretKey, nil
		},
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// -----------------------------------------------------------------------------

// ValidateCredential resolves a token to its user identity.
func (manager *JWTManager) ValidateCredential(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", helpers.ErrMissingCredential
	}

	claims, err := manager.Verify(token)
	if err != nil {
		return "", helpers.NewAuthenticationError("credential rejected", err)
	}

	id := claims.Identity()
	if id == "" {
		return "", helpers.NewAuthenticationError("credential carries no user identity", nil)
	}
	return id, nil
}

// -----------------------------------------------------------------------------

// ExtractToken reads the credential from the "token" query parameter, falling
// back to a Bearer Authorization header. It returns "" when neither is set.
func ExtractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	const bearerPrefix = "Bearer "
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) > len(bearerPrefix) && strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(authHeader[len(bearerPrefix):])
	}
	return ""
}
