package flow

import (
	"context"

	"github.com/jobinfo/wabot/core/codec/otp"
	"github.com/jobinfo/wabot/core/storage"
)

// CVSaver persists an uploaded CV document and returns its stored path.
type CVSaver interface {
	SaveCV(ctx context.Context, waNumber, mediaID, mimeType string) (string, error)
}

// OTPService is the verification surface flows depend on.
type OTPService interface {
	Generate(ctx context.Context, senderID string) (string, error)
	Verify(ctx context.Context, senderID, submitted string) error
	AttemptsLeft(ctx context.Context, senderID string) int
}

// Services bundles the collaborators flow machines call on completion.
type Services struct {
	Repo        storage.Repository
	OTP         OTPService
	CV          CVSaver
	AdminNumber string
}

var _ OTPService = (*otp.Service)(nil)
