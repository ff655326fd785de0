package service

import (
	"errors"
	"fmt"

	"github.com/maheshrc27/tattle-publisher/internal/models"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidState          = errors.New("invalid post state")
	ErrInactiveAccount       = errors.New("account is not active")
	ErrMissingCredentials    = errors.New("account missing Instagram credentials")
	ErrProcessingFailed      = errors.New("video processing failed")
	ErrProcessingTimeout     = errors.New("video processing timeout")
	ErrEmptyMedia            = errors.New("post has no media")
	ErrTooManyMedia          = fmt.Errorf("post has more than %d media items", models.MaxMediaPerPost)
	ErrDeclineReasonRequired = errors.New("decline message is required")
	ErrValidation            = errors.New("invalid request")
)

// GatewayError is returned when the Graph API rejects a call. Message holds
// the remote error.message when one was sent.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return e.Message
}

// IsPrecondition reports whether err was raised before any remote call was made.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInactiveAccount) ||
		errors.Is(err, ErrMissingCredentials)
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
