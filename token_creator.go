package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// TokenCreator issues and verifies the validation tokens that bind a
// successful document check to the registration that follows it.
type TokenCreator interface {
	// CreateValidationToken signs a token for the validated identity number
	// and returns it together with its id, which the caller stores for
	// single-use enforcement.
	CreateValidationToken(identityNumber string) (token string, tokenId string, err error)

	// VerifyValidationToken checks signature and expiry and returns the
	// token id and the identity number the token was issued for.
	VerifyValidationToken(token string) (tokenId string, identityNumber string, err error)
}

type validationClaims struct {
	IdentityNumber string `json:"identity_number"`
	jwt.RegisteredClaims
}

const tokenIssuer = "go-id-register"

// HmacTokenCreator signs validation tokens with HS256. The secret is shared
// between nothing and nobody: the same process issues and verifies.
type HmacTokenCreator struct {
	secret []byte
	ttl    time.Duration
}

func NewHmacTokenCreator(secret string, ttl time.Duration) (*HmacTokenCreator, error) {
	if secret == "" {
		return nil, fmt.Errorf("token signing secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %v", ttl)
	}
	return &HmacTokenCreator{
		secret: []byte(secret),
		ttl:    ttl,
	}, nil
}

func (c *HmacTokenCreator) CreateValidationToken(identityNumber string) (string, string, error) {
	now := time.Now()
	tokenId := uuid.NewString()
	claims := validationClaims{
		IdentityNumber: identityNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenId,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign validation token: %w", err)
	}
	return token, tokenId, nil
}

func (c *HmacTokenCreator) VerifyValidationToken(token string) (string, string, error) {
	var claims validationClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to parse validation token: %w", err)
	}
	if !parsed.Valid {
		return "", "", fmt.Errorf("validation token is not valid")
	}
	if claims.ID == "" {
		return "", "", fmt.Errorf("validation token has no id")
	}
	return claims.ID, claims.IdentityNumber, nil
}
