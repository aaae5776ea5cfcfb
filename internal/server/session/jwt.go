// Package session mints and parses the HS256 JWTs issued on successful
// authentication.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/psharma/securenotes/internal/common"
)

// Claims carries the standard registered claims plus the principal id and
// its staff bit. The staff bit is a claim so authorization checks on STAFF
// do not need a user lookup.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
	Staff  bool
}

// GenerateToken signs a session token for userID valid for validityDuration.
func GenerateToken(userID string, staff bool, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
		Staff:  staff,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates the signature and expiry and returns the claims.
// Invalid or expired tokens yield common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
