package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks defects in caller-supplied data (oversized
	// uploads, malformed parameters). Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnreadableImage marks bytes that cannot be decoded as a supported
	// raster format.
	ErrUnreadableImage = errors.New("unreadable image")

	// ErrEngineUnavailable is reported only when every configured
	// recognition engine failed for one request.
	ErrEngineUnavailable = errors.New("recognition engine unavailable")

	// ErrNoIdentifier is the business outcome "nothing found on the card".
	// Kept distinct from system errors so callers can map it separately.
	ErrNoIdentifier = errors.New("no identifier found")

	// ErrDecryptionFailed covers authentication failures on open and an
	// uninitialized envelope. Fatal for the call, never partial plaintext.
	ErrDecryptionFailed = errors.New("decryption failed")

	ErrRecordNotFound = errors.New("record not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
