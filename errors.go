package cryptolab

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned when the backend answers 401. The stored
// token has already been cleared by the time the caller sees it; the caller
// is expected to log in again.
var ErrUnauthorized = errors.New("unauthorized")

// SubmissionError is returned when the backend rejects a job submission or
// an auth form.
//
// Error returns Message verbatim so it can be shown to a user as-is.
type SubmissionError struct {
	// Op is the rejected operation ("model", "login", ...).
	Op string

	// StatusCode is the HTTP status the backend answered with.
	StatusCode int

	// Message is the backend's detail, or a generic fallback.
	Message string
}

func (e *SubmissionError) Error() string {
	return e.Message
}

// APIError is returned when a data or watchlist call gets a non-2xx answer.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

// PollError ends a polling session after a transport failure, a non-2xx
// status or an undecodable body. Err holds the cause; a 401 wraps
// [ErrUnauthorized].
type PollError struct {
	Kind       string
	TaskID     string
	StatusCode int
	Err        error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("failed to fetch %s result for task %s: %v", e.Kind, e.TaskID, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// JobFailure is delivered when the backend reports [StatusFailure]. It is
// distinct from [PollError]: the job ran and failed, the transport was fine.
type JobFailure struct {
	Kind    string
	TaskID  string
	Message string
}

func (e *JobFailure) Error() string {
	return e.Message
}

// extractDetail returns the human-readable message in a FastAPI-style error
// body: a string "detail", or the "msg" of the first validation error when
// "detail" is an array. It returns "" when neither is usable.
func extractDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		return strings.TrimSpace(items[0].Msg)
	}
	return ""
}

// detailOr returns the extracted detail of body, or fallback.
func detailOr(body []byte, fallback string) string {
	if msg := extractDetail(body); msg != "" {
		return msg
	}
	return fallback
}
