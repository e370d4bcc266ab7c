package apperr

import (
	"errors"
	"fmt"
	"strings"
)

const GenericUserMessage = "Something went wrong while talking to Facebook. Please try again later."

var (
	ErrNotFound = errors.New("not found")
)

// IOError is a local filesystem failure for a single file or operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func NewIOError(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}

// GraphError mirrors the "error" object of a Graph API response.
type GraphError struct {
	Message        string `json:"message"`
	Type           string `json:"type"`
	Code           int    `json:"code"`
	ErrorSubcode   int    `json:"error_subcode"`
	ErrorUserTitle string `json:"error_user_title"`
	ErrorUserMsg   string `json:"error_user_msg"`
	FBTraceID      string `json:"fbtrace_id"`
}

// RemoteUploadError carries the provider payload of a rejected Graph API call.
type RemoteUploadError struct {
	Service    string
	Operation  string
	StatusCode int
	Payload    GraphError
	Err        error
}

func (e *RemoteUploadError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Service)
	if e.Operation != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Operation)
	}
	sb.WriteString(fmt.Sprintf(" failed (status %d", e.StatusCode))
	if e.Payload.Code != 0 {
		sb.WriteString(fmt.Sprintf(", code %d", e.Payload.Code))
		if e.Payload.ErrorSubcode != 0 {
			sb.WriteString(fmt.Sprintf("/%d", e.Payload.ErrorSubcode))
		}
	}
	sb.WriteString(")")
	if e.Payload.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Payload.Message)
	} else if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *RemoteUploadError) Unwrap() error { return e.Err }

// IsRateLimited reports the Graph API throttling codes (4, 17, 32, 613, 80000-80014).
func (e *RemoteUploadError) IsRateLimited() bool {
	switch e.Payload.Code {
	case 4, 17, 32, 613:
		return true
	}
	return e.Payload.Code >= 80000 && e.Payload.Code <= 80014
}

// CircuitOpenError is returned without touching the network while a breaker is open.
type CircuitOpenError struct {
	Service string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker for %s is open", e.Service)
}

// RateLimitedError is returned while an ad account is paused by the usage tracker.
type RateLimitedError struct {
	AdAccountID string
	RetryAfter  string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("ad account %s is rate limited, retry after %s", e.AdAccountID, e.RetryAfter)
}

// DuplicationStructureFetchError means the source children could not be read before planning.
type DuplicationStructureFetchError struct {
	SourceID string
	Err      error
}

func (e *DuplicationStructureFetchError) Error() string {
	return fmt.Sprintf("failed to fetch structure of %s: %v", e.SourceID, e.Err)
}

func (e *DuplicationStructureFetchError) Unwrap() error { return e.Err }

// UserMessage returns the text that is safe to show to an end user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var remoteErr *RemoteUploadError
	if errors.As(err, &remoteErr) {
		if remoteErr.Payload.ErrorUserMsg != "" {
			return remoteErr.Payload.ErrorUserMsg
		}
		if remoteErr.Payload.ErrorUserTitle != "" {
			return remoteErr.Payload.ErrorUserTitle
		}
		if remoteErr.Payload.Message != "" {
			return remoteErr.Payload.Message
		}
		return GenericUserMessage
	}

	var openErr *CircuitOpenError
	if errors.As(err, &openErr) {
		return fmt.Sprintf("%s is temporarily unavailable. Please try again in a minute.", openErr.Service)
	}

	var rateErr *RateLimitedError
	if errors.As(err, &rateErr) {
		return "Facebook rate limit reached for this ad account. Please try again later."
	}

	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return "Failed to read or store the uploaded file."
	}

	var fetchErr *DuplicationStructureFetchError
	if errors.As(err, &fetchErr) {
		if msg := UserMessage(fetchErr.Err); msg != GenericUserMessage {
			return msg
		}
		return "Failed to read the structure of the source entity."
	}

	return GenericUserMessage
}
