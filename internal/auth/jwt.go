// Package auth issues and verifies access tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
)

var (
	ErrAccessTokenMissing = apperr.Unauthorized("missing access token").WithReason("ACCESS_TOKEN_MISSING")
	ErrAccessTokenExpired = apperr.Unauthorized("access token expired").WithReason("ACCESS_TOKEN_EXPIRED")
	ErrAccessTokenInvalid = apperr.Unauthorized("invalid access token").WithReason("ACCESS_TOKEN_INVALID")
)

// Claims carried by the access token.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID primitive.ObjectID
	Role   string
	Email  string
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Signer) Issue(userID primitive.ObjectID, role, email string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *Signer) Parse(raw string) (*Principal, error) {
	if raw == "" {
		return nil, ErrAccessTokenMissing
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, ErrAccessTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrAccessTokenInvalid
	}
	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, ErrAccessTokenInvalid
	}
	return &Principal{UserID: userID, Role: claims.Role, Email: claims.Email}, nil
}
