package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/driftchat/relay/internal/domain"
)

var (
	// ErrInvalidToken is returned when the token is malformed or its
	// signature does not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrMissingIdentity is returned when a valid token carries no user
	// identity claims.
	ErrMissingIdentity = errors.New("token carries no identity")
)

// Verifier is the credential-verification collaborator consumed at handshake
// time. Implementations turn an opaque credential token into a verified
// identity or report why they cannot.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// Claims are the JWT claims the relay understands.
type Claims struct {
	jwt.RegisteredClaims
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// TokenManager verifies HMAC-signed credential tokens. It can also mint
// tokens, which the relay itself never does in production; issuance lives in
// the credential service, but a shared implementation keeps local development
// and tests self-contained.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// Issue mints a signed credential token for the given identity.
func (m *TokenManager) Issue(userID, displayName string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UserID:      userID,
		DisplayName: displayName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify validates a credential token and returns the identity it carries.
func (m *TokenManager) Verify(ctx context.Context, tokenString string) (*domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.DisplayName == "" {
		return nil, ErrMissingIdentity
	}

	return &domain.Identity{
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
	}, nil
}
