package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quoteajob/quoteajob/internal/models"
)

// Token purposes. A verification token is never accepted as a session and vice versa.
const (
	PurposeSession     = "session"
	PurposeVerifyEmail = "verify_email"
)

var ErrWrongPurpose = errors.New("token issued for a different purpose")

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID  string      `json:"user_id"`
	Role    models.Role `json:"role,omitempty"`
	Purpose string      `json:"purpose"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a session token for a given user.
func GenerateJWT(userID string, role models.Role, secretKey string, ttl time.Duration) (string, error) {
	return sign(&Claims{UserID: userID, Role: role, Purpose: PurposeSession}, secretKey, ttl)
}

// GenerateEmailVerificationToken creates the token embedded in verification links.
func GenerateEmailVerificationToken(userID, secretKey string, ttl time.Duration) (string, error) {
	return sign(&Claims{UserID: userID, Purpose: PurposeVerifyEmail}, secretKey, ttl)
}

func sign(claims *Claims, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Subject:   claims.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT verifies a session token and returns its claims.
func ValidateJWT(tokenString, secretKey string) (*Claims, error) {
	return parse(tokenString, secretKey, PurposeSession)
}

// ValidateEmailVerificationToken verifies a verification token and returns its claims.
func ValidateEmailVerificationToken(tokenString, secretKey string) (*Claims, error) {
	return parse(tokenString, secretKey, PurposeVerifyEmail)
}

func parse(tokenString, secretKey, purpose string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}
