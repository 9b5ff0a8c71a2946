package middleware

import (
	"errors"
	"fmt"

	"learner-portal/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

type ViewerClaims struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier checks the backend's HMAC-signed session token locally.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier returns nil when no secret is configured.
func NewTokenVerifier(secret string) *TokenVerifier {
	if secret == "" {
		return nil
	}
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(raw string) (model.Viewer, error) {
	claims := &ViewerClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, v.key, jwt.WithExpirationRequired())
	if err != nil {
		return model.Anonymous, fmt.Errorf("verify token: %w", err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return model.Anonymous, errors.New("verify token: missing user")
	}

	role := model.RoleUser
	if claims.Role == string(model.RoleAdmin) {
		role = model.RoleAdmin
	}

	return model.Viewer{
		Authenticated: true,
		UserID:        claims.UserID,
		Name:          claims.Name,
		Email:         claims.Email,
		Role:          role,
	}, nil
}

func (v *TokenVerifier) key(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}
