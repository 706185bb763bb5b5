package security

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/ports/adapter"
)

// Ensure JWTVerifier implements adapter.IdentityVerifier
var _ adapter.IdentityVerifier = (*JWTVerifier)(nil)

// JWTVerifier validates identity-provider bearer tokens locally with the
// provider's HS256 signing secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(token string) (*adapter.Identity, error) {
	claims := &identityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: token without subject", domain.ErrUnauthenticated)
	}
	return &adapter.Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
