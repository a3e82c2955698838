package utils

import (
	"errors"
	"fmt"
	"time"

	"soulconnect-chat/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType separates short-lived access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// ErrWrongTokenType is returned when a refresh token is used as access token or vice versa.
var ErrWrongTokenType = errors.New("wrong token type")

// Claims defines the structure of our JWT claims.
type Claims struct {
	UserID    string    `json:"user_id"`
	ProfileID string    `json:"profile_id"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateTokenPair issues an access and a refresh token for a user.
func GenerateTokenPair(userID, profileID uuid.UUID) (access, refresh string, err error) {
	if config.Cfg == nil {
		return "", "", fmt.Errorf("JWT secret is not configured")
	}
	access, err = GenerateAccessToken(userID, profileID)
	if err != nil {
		return "", "", err
	}
	refresh, err = GenerateJWT(userID, profileID, RefreshToken, config.Cfg.RefreshMaxAge)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// GenerateAccessToken issues a short-lived access token.
func GenerateAccessToken(userID, profileID uuid.UUID) (string, error) {
	if config.Cfg == nil {
		return "", fmt.Errorf("JWT secret is not configured")
	}
	return GenerateJWT(userID, profileID, AccessToken, config.Cfg.AccessTokenMaxAge)
}

// GenerateJWT signs a token of the given type.
func GenerateJWT(userID, profileID uuid.UUID, typ TokenType, maxAge time.Duration) (string, error) {
	if config.Cfg == nil || config.Cfg.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret is not configured")
	}
	if maxAge <= 0 {
		return "", fmt.Errorf("token max age is not configured or invalid")
	}

	now := time.Now()
	claims := &Claims{
		UserID:    userID.String(),
		ProfileID: profileID.String(),
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(maxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "soulconnect-chat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(config.Cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// ValidateJWT parses tokenString and checks it is a token of the wanted type.
func ValidateJWT(tokenString string, want TokenType) (*Claims, error) {
	if config.Cfg == nil || config.Cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is not configured for validation")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.Cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse or validate token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	if claims.TokenType != want {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
