// Package tokens manages rotating refresh tokens with reuse detection.
package tokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/logger"
	"storefront/internal/models"
)

const (
	DefaultTTL  = 30 * 24 * time.Hour
	secretBytes = 64
	hashCost    = 10
)

type Store interface {
	Insert(ctx context.Context, token *models.RefreshToken) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.RefreshToken, error)
	// MarkRotated flags an active token as consumed by replacedBy. It reports
	// false when the token was already rotated or revoked.
	MarkRotated(ctx context.Context, id, replacedBy primitive.ObjectID, at time.Time) (bool, error)
	Revoke(ctx context.Context, id primitive.ObjectID) error
	RevokeAllForUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Issued is what the caller needs to set the refresh cookie.
type Issued struct {
	CookieValue string
	ExpiresAt   time.Time
	UserID      primitive.ObjectID
	TokenID     primitive.ObjectID
}

type Manager struct {
	store Store
	ttl   time.Duration
	cost  int
	log   logger.Logger
	now   func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithHashCost lowers the bcrypt cost, tests only.
func WithHashCost(cost int) Option {
	return func(m *Manager) { m.cost = cost }
}

func NewManager(store Store, ttl time.Duration, log logger.Logger, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{store: store, ttl: ttl, cost: hashCost, log: log, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) CreateToken(ctx context.Context, userID primitive.ObjectID) (*Issued, error) {
	return m.create(ctx, primitive.NewObjectID(), userID)
}

func (m *Manager) create(ctx context.Context, id, userID primitive.ObjectID) (*Issued, error) {
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword(digest(secret), m.cost)
	if err != nil {
		return nil, fmt.Errorf("hash refresh secret: %w", err)
	}

	now := m.now()
	record := &models.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: string(hash),
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Issued{
		CookieValue: id.Hex() + "." + secret,
		ExpiresAt:   record.ExpiresAt,
		UserID:      userID,
		TokenID:     id,
	}, nil
}

// ValidateAndRotate consumes cookieValue and returns its replacement. A token
// can be rotated exactly once; presenting it again, or presenting a wrong
// secret for a known id, revokes every token of the owner.
func (m *Manager) ValidateAndRotate(ctx context.Context, cookieValue string) (*Issued, error) {
	id, secret, err := ParseCookie(cookieValue)
	if err != nil {
		return nil, err
	}

	record, err := m.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if record.RotatedAt != nil {
		return nil, m.reuseDetected(ctx, record, "rotated token presented again")
	}
	if record.Revoked {
		return nil, ErrTokenInvalid
	}
	if record.ExpiresAt.Before(m.now()) {
		return nil, ErrTokenExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(record.TokenHash), digest(secret)) != nil {
		return nil, m.reuseDetected(ctx, record, "secret mismatch")
	}

	// The child is stored before the parent is consumed.
	child, err := m.create(ctx, primitive.NewObjectID(), record.UserID)
	if err != nil {
		return nil, err
	}
	ok, err := m.store.MarkRotated(ctx, record.ID, child.TokenID, m.now())
	if err != nil || !ok {
		if rerr := m.store.Revoke(ctx, child.TokenID); rerr != nil {
			m.log.Warn("unused refresh token not revoked",
				logger.String("tokenId", child.TokenID.Hex()),
				logger.Error(rerr),
			)
		}
		if err != nil {
			return nil, err
		}
		return nil, m.reuseDetected(ctx, record, "concurrent rotation")
	}
	return child, nil
}

func (m *Manager) reuseDetected(ctx context.Context, record *models.RefreshToken, reason string) error {
	revoked, err := m.store.RevokeAllForUser(ctx, record.UserID)
	if err != nil {
		m.log.Error("revoke after reuse failed",
			logger.String("userId", record.UserID.Hex()),
			logger.Error(err),
		)
		return err
	}
	m.log.Warn("refresh token reuse detected",
		logger.String("userId", record.UserID.Hex()),
		logger.String("tokenId", record.ID.Hex()),
		logger.String("reason", reason),
		logger.Int64("revoked", revoked),
	)
	return ErrTokenReuseDetected
}

// Revoke is best effort: unknown ids are ignored.
func (m *Manager) Revoke(ctx context.Context, id primitive.ObjectID) error {
	return m.store.Revoke(ctx, id)
}

// RevokeCookie revokes the token referenced by a cookie value. Malformed values
// are ignored so logout always succeeds.
func (m *Manager) RevokeCookie(ctx context.Context, cookieValue string) error {
	id, _, err := ParseCookie(cookieValue)
	if err != nil {
		return nil
	}
	return m.store.Revoke(ctx, id)
}

func (m *Manager) RevokeAllForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return m.store.RevokeAllForUser(ctx, userID)
}

// ParseCookie splits "<id>.<secret>" on the first dot.
func ParseCookie(value string) (primitive.ObjectID, string, error) {
	rawID, secret, found := strings.Cut(strings.TrimSpace(value), ".")
	if !found || rawID == "" || secret == "" {
		return primitive.NilObjectID, "", ErrTokenMalformed
	}
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return primitive.NilObjectID, "", ErrTokenMalformed
	}
	return id, secret, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// digest keeps the bcrypt input under its 72 byte limit; the hex secret is 128 bytes.
func digest(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte(hex.EncodeToString(sum[:]))
}
