package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims mirrors the access tokens minted by the hosted auth provider.
type CustomClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrTokenInvalid = errors.New("invalid or expired token")
	ErrTokenSubject = errors.New("token has no subject")
)

// GenerateToken signs an HS256 token. Production tokens come from the auth provider;
// this is used by tests and the dev-token command.
func GenerateToken(secret []byte, userID, email, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

type VerifyOptions struct {
	Audience string
	Issuer   string
}

// ParseToken verifies signature, expiry and, when set, audience and issuer.
func ParseToken(secret []byte, tokenString string, verify VerifyOptions) (*CustomClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if verify.Audience != "" {
		opts = append(opts, jwt.WithAudience(verify.Audience))
	}
	if verify.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(verify.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, ErrTokenSubject
	}
	return claims, nil
}
