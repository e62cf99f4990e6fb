package retrieval

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"github.com/hal9000y/gmail-agent/internal/gservice"
	"github.com/hal9000y/gmail-agent/internal/variant"
)

// Describe turns err into a message fit for an end user. Unknown errors
// fall back to their own text.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, variant.ErrGeneration):
		return "could not turn the request into searches, the language model returned unusable output"
	case errors.Is(err, gservice.ErrUnauthorized):
		return "Gmail authorization failed, sign in again via /oauth"
	case errors.Is(err, gservice.ErrNotFound):
		return "the requested Gmail message or draft does not exist"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "Gmail is temporarily unavailable, try again shortly"
	case errors.Is(err, context.DeadlineExceeded):
		return "the request timed out"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	}

	return err.Error()
}
