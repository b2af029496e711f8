package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims carries the identity of a streaming client.
type JWTClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"` // "stream"
	jwt.RegisteredClaims
}

// Issuer signs and validates stream tokens with a shared secret.
type Issuer struct {
	secret []byte
}

// NewIssuer creates an issuer with the given signing secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// GenerateStreamToken generates a JWT token for a streaming client.
func (i *Issuer) GenerateStreamToken(clientID string) (string, error) {
	claims := &JWTClaims{
		ClientID: clientID,
		Role:     "stream",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken validates a JWT token and returns the claims.
func (i *Issuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
