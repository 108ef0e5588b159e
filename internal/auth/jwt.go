package auth

import (
	"errors"
	"time"

	"paygate/config"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies a provider on the dashboard surface.
type Claims struct {
	ProviderID uint   `json:"provider_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

func GenerateToken(cfg *config.JWTConfig, providerID uint, email string) (string, error) {
	claims := Claims{
		ProviderID: providerID,
		Email:      email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.Expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

var ErrInvalidToken = errors.New("invalid token")

func ParseToken(cfg *config.JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
