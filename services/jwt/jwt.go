package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/staffhive/teamchat/models"
)

const AccessTokenValidity = time.Hour * 24

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken signs an access token for an identity. Issued by the account
// service in production; kept here so tests and tooling can mint tokens.
func GenerateToken(identity models.Identity, secret string) (string, error) {
	claims := jwt.MapClaims{
		"id":   identity.ID,
		"role": string(identity.Kind),
		"exp":  time.Now().Add(AccessTokenValidity).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAndGetClaims verifies the signature and expiry and returns the
// claim set.
func ValidateAndGetClaims(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IdentityFromClaims rebuilds the tagged identity carried in a token.
func IdentityFromClaims(claims jwt.MapClaims) (models.Identity, error) {
	id, ok := claims["id"].(float64)
	if !ok || id <= 0 {
		return models.Identity{}, ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok {
		return models.Identity{}, ErrInvalidToken
	}
	return models.NewIdentity(models.IdentityKind(role), uint(id))
}
