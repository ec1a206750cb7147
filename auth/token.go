package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chat-relay"

// Claims is the data carried by a session token. The identity id and kind are
// the same pair a websocket client sends in its identify event.
type Claims struct {
	IdentityID string      `json:"identity_id"`
	Kind       domain.Kind `json:"kind"`
	jwt.RegisteredClaims
}

func (c Claims) Identity() domain.Identity {
	return domain.Identity{ID: c.IdentityID, Kind: c.Kind}
}

// Token is a signed session token handed to clients.
type Token string

func (t Token) String() string {
	return string(t)
}

// Tokens signs and validates HS256 session tokens.
type Tokens struct {
	secret   []byte
	duration time.Duration
}

func NewTokens(secret string, duration time.Duration) Tokens {
	return Tokens{secret: []byte(secret), duration: duration}
}

// Generate creates a signed token for an identity.
func (t Tokens) Generate(identity domain.Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		IdentityID: identity.ID,
		Kind:       identity.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

// Validate checks signature, algorithm, issuer and expiration.
func (t Tokens) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
