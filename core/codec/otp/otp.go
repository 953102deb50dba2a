// Package otp issues and verifies one-time numeric codes for conversation
// verification steps. At most one live challenge exists per sender; codes
// are single-use and verification attempts are bounded.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobinfo/wabot/core/config"
	"github.com/jobinfo/wabot/core/logger"
)

var (
	// ErrNotFound means no live challenge exists for the sender.
	ErrNotFound = errors.New("otp: no challenge")
	// ErrExpired means the challenge outlived its TTL.
	ErrExpired = errors.New("otp: challenge expired")
	// ErrMismatch means the submitted code is wrong but attempts remain.
	ErrMismatch = errors.New("otp: code mismatch")
	// ErrAttemptsExhausted means the attempt bound was hit; the caller
	// must terminate the flow rather than retry.
	ErrAttemptsExhausted = errors.New("otp: attempts exhausted")
)

// Challenge is one ephemeral verification record keyed by sender.
type Challenge struct {
	SenderID  string    `db:"sender_id"`
	Code      string    `db:"code"`
	ExpiresAt time.Time `db:"expires_at"`
	Attempts  int       `db:"attempts"`
}

// ChallengeStore persists challenges. Upsert overwrites any prior challenge
// for the sender.
type ChallengeStore interface {
	Upsert(ctx context.Context, ch *Challenge) error
	Get(ctx context.Context, senderID string) (*Challenge, error)
	Delete(ctx context.Context, senderID string) error
}

// Service owns the challenge lifecycle.
type Service struct {
	store       ChallengeStore
	length      int
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewService builds the OTP service from configuration.
func NewService(store ChallengeStore, cfg config.OTPConfig) *Service {
	return &Service{
		store:       store,
		length:      cfg.Length,
		ttl:         cfg.TTL(),
		maxAttempts: cfg.MaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Generate creates a fresh challenge for the sender, replacing any prior
// unconsumed one, and returns the code for delivery.
func (s *Service) Generate(ctx context.Context, senderID string) (string, error) {
	code, err := randomDigits(s.length)
	if err != nil {
		return "", fmt.Errorf("otp generate: %w", err)
	}

	ch := &Challenge{
		SenderID:  senderID,
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl),
		Attempts:  0,
	}
	if err := s.store.Upsert(ctx, ch); err != nil {
		return "", fmt.Errorf("otp generate: %w", err)
	}

	logger.OTP.Debug("challenge issued",
		slog.String("event", "otp.generate"),
		slog.String("sender", senderID),
	)
	return code, nil
}

// Verify checks a submitted code. A successful verification consumes the
// challenge immediately; a later verify with the same code sees ErrNotFound.
func (s *Service) Verify(ctx context.Context, senderID, submitted string) error {
	ch, err := s.store.Get(ctx, senderID)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("otp verify: %w", err)
	}

	if s.now().After(ch.ExpiresAt) {
		_ = s.store.Delete(ctx, senderID)
		return ErrExpired
	}

	if submitted != ch.Code {
		ch.Attempts++
		if ch.Attempts >= s.maxAttempts {
			_ = s.store.Delete(ctx, senderID)
			logger.OTP.Warn("attempts exhausted",
				slog.String("event", "otp.exhausted"),
				slog.String("sender", senderID),
			)
			return ErrAttemptsExhausted
		}
		if err := s.store.Upsert(ctx, ch); err != nil {
			return fmt.Errorf("otp verify: %w", err)
		}
		return ErrMismatch
	}

	if err := s.store.Delete(ctx, senderID); err != nil {
		return fmt.Errorf("otp consume: %w", err)
	}
	logger.OTP.Debug("challenge verified",
		slog.String("event", "otp.verify"),
		slog.String("sender", senderID),
	)
	return nil
}

// AttemptsLeft reports remaining tries for the sender's live challenge.
func (s *Service) AttemptsLeft(ctx context.Context, senderID string) int {
	ch, err := s.store.Get(ctx, senderID)
	if err != nil {
		return 0
	}
	left := s.maxAttempts - ch.Attempts
	if left < 0 {
		return 0
	}
	return left
}

// randomDigits draws n uniform decimal digits. Bytes of 250 and above are
// rejected so the modulo does not skew toward low digits.
func randomDigits(n int) (string, error) {
	digits := make([]byte, 0, n)
	buf := make([]byte, 2*n)
	for len(digits) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			digits = append(digits, '0'+b%10)
			if len(digits) == n {
				break
			}
		}
	}
	return string(digits), nil
}
