// Package otp issues and verifies single use password reset codes.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/events"
	"storefront/internal/logger"
)

const (
	codeDigits         = 6
	defaultMaxIssues   = 3
	defaultIssueWindow = time.Hour
)

var (
	ErrInvalidCode     = apperr.BadRequest("invalid or expired code").WithReason("OTP_INVALID")
	ErrTooManyAttempts = apperr.BadRequest("too many attempts, request a new code").WithReason("OTP_ATTEMPTS_EXCEEDED")
	ErrTooManyRequests = apperr.New(apperr.CodeTooManyRequests, "too many codes requested, try again later").WithReason("OTP_RATE_LIMITED")
)

// Entry is the stored state of one pending code.
type Entry struct {
	CodeHash string
	Attempts int
}

// Store keeps at most one Entry per email and forgets it after the TTL.
type Store interface {
	Save(ctx context.Context, email, codeHash string, ttl time.Duration) error
	// Get returns nil, nil when no live entry exists.
	Get(ctx context.Context, email string) (*Entry, error)
	IncrementAttempts(ctx context.Context, email string) (int, error)
	Delete(ctx context.Context, email string) error
	// CountIssue bumps the number of codes issued to email in the current
	// window and returns it. A window starts with the first issue and lasts
	// window, independent of the code TTL.
	CountIssue(ctx context.Context, email string, window time.Duration) (int, error)
}

type Service struct {
	store       Store
	events      events.Publisher
	log         logger.Logger
	ttl         time.Duration
	maxAttempts int
	maxIssues   int
	issueWindow time.Duration
	now         func() time.Time
}

func NewService(store Store, publisher events.Publisher, log logger.Logger, ttl time.Duration, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{
		store:       store,
		events:      publisher,
		log:         log,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		maxIssues:   defaultMaxIssues,
		issueWindow: defaultIssueWindow,
		now:         time.Now,
	}
}

// WithIssueLimit caps how many codes one email may receive per window.
func (s *Service) WithIssueLimit(maxIssues int, window time.Duration) *Service {
	if maxIssues > 0 {
		s.maxIssues = maxIssues
	}
	if window > 0 {
		s.issueWindow = window
	}
	return s
}

// Issue replaces any pending code for email and hands the new one to the
// notification queue. At most maxIssues codes go to one email per window, so
// wrong guesses are bounded by maxIssues*maxAttempts per window.
func (s *Service) Issue(ctx context.Context, email string) (string, error) {
	email = normalize(email)
	issued, err := s.store.CountIssue(ctx, email, s.issueWindow)
	if err != nil {
		return "", fmt.Errorf("count otp issues: %w", err)
	}
	if issued > s.maxIssues {
		s.log.Warn("otp issue limit reached", logger.String("email", email), logger.Int("issued", issued))
		return "", ErrTooManyRequests
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}
	if err := s.store.Save(ctx, email, hash(code), s.ttl); err != nil {
		return "", fmt.Errorf("save otp: %w", err)
	}

	if s.events != nil {
		ev, err := events.New(events.TypeOTPRequested, events.OTPRequested{
			Email:     email,
			Code:      code,
			ExpiresAt: s.now().Add(s.ttl),
		})
		if err == nil {
			err = s.events.Publish(ctx, ev)
		}
		if err != nil {
			s.log.Error("otp notification not published", logger.String("email", email), logger.Error(err))
		}
	}
	return code, nil
}

// Verify consumes the pending code for email. A wrong code counts as an
// attempt; the entry is dropped once attempts reach the limit.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = normalize(email)
	entry, err := s.store.Get(ctx, email)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrInvalidCode
	}
	if entry.Attempts >= s.maxAttempts {
		_ = s.store.Delete(ctx, email)
		return ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(entry.CodeHash), []byte(hash(strings.TrimSpace(code)))) != 1 {
		attempts, err := s.store.IncrementAttempts(ctx, email)
		if err != nil {
			return err
		}
		if attempts >= s.maxAttempts {
			_ = s.store.Delete(ctx, email)
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}
	return s.store.Delete(ctx, email)
}

func generateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func hash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
