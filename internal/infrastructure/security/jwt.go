// Package security binds authenticated users to telemetry sessions from the
// application's session tokens.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// UserBinder is implemented by telemetry.Tracker.
type UserBinder interface {
	Identify(userID string)
}

var (
	ErrEmptySecret = errors.New("empty token secret")
	ErrNoSubject   = errors.New("token carries no subject")
)

// ValidateJWT validates an HS256 token and returns its claims.
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	if jwtSecret == "" {
		return nil, ErrEmptySecret
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// UserIDFromToken returns the "sub" claim of a valid token.
func UserIDFromToken(tokenString, jwtSecret string) (string, error) {
	claims, err := ValidateJWT(tokenString, jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to validate session token: %w", err)
	}
	subject, _ := claims["sub"].(string)
	if subject == "" {
		return "", ErrNoSubject
	}
	return subject, nil
}

// BindFromToken validates the token and binds its subject to the session.
func BindFromToken(binder UserBinder, tokenString, jwtSecret string) (string, error) {
	userID, err := UserIDFromToken(tokenString, jwtSecret)
	if err != nil {
		return "", err
	}
	binder.Identify(userID)
	return userID, nil
}

// GenerateSessionToken signs an HS256 token for userID valid for ttl.
func GenerateSessionToken(userID, jwtSecret string, ttl time.Duration) (string, error) {
	if jwtSecret == "" {
		return "", ErrEmptySecret
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}
