// Package auth issues and validates the HS256 JWTs that carry a request
// principal. The token only identifies the profile; tier and capabilities are
// resolved from the profile store on every request.
package auth

import (
	"errors"
	"time"

	"github.com/genovault/genovault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims includes the registered claims plus the profile id of the principal.
type Claims struct {
	jwt.RegisteredClaims
	ProfileID string
}

func GenerateToken(profileID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		ProfileID: profileID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func GetProfileIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrInvalidToken
		}
		return "", err
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.ProfileID, nil
}
