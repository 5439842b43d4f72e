package domain

import (
	"errors"
	"net/http"
)

// Pipeline error taxonomy. Handlers map these onto HTTP statuses with
// HTTPStatus; everything else is an internal error.
var (
	// ErrInvalidInput is returned for malformed or missing URLs/identifiers.
	ErrInvalidInput = errors.New("invalid or missing input")

	// ErrPostUnavailable is returned when a post is private or deleted.
	ErrPostUnavailable = errors.New("This post is private or does not exist")

	// ErrNoMedia is returned when a post page contains no extractable media.
	ErrNoMedia = errors.New("no media found in post")

	// ErrUpstreamBlocked is returned when the platform redirects to a login
	// wall or otherwise signals anti-automation. Retryable by the caller.
	ErrUpstreamBlocked = errors.New("upstream blocked the request, try again later")

	// ErrResourceUnavailable is returned when a browser page cannot be acquired.
	ErrResourceUnavailable = errors.New("browser session is not available")

	// ErrNavigationTimeout is returned when page navigation exceeds the
	// configured idle-network timeout.
	ErrNavigationTimeout = errors.New("page navigation timed out")

	// ErrNavigationError is returned for any other navigation failure.
	ErrNavigationError = errors.New("page navigation failed")

	// ErrDownloadFailed is returned when a required media download fails.
	ErrDownloadFailed = errors.New("media download failed")

	// ErrAnalysisFailed is returned when the analysis service call fails.
	ErrAnalysisFailed = errors.New("media analysis failed")

	// ErrRateLimited is returned when an upstream rate-limits us.
	ErrRateLimited = errors.New("rate limited")
)

// HTTPStatus maps a pipeline error onto the HTTP status of the response.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrPostUnavailable), errors.Is(err, ErrNoMedia):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PipelineError wraps an error with the post and pipeline phase it occurred in.
type PipelineError struct {
	PostID PostID
	Op     string
	Err    error
}

func (e *PipelineError) Error() string {
	if e.PostID != "" {
		return e.Op + " [" + e.PostID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(postID PostID, op string, err error) *PipelineError {
	return &PipelineError{
		PostID: postID,
		Op:     op,
		Err:    err,
	}
}

// UserMessage returns the message exposed to callers and the failure
// notifier. Internal details and stack traces never leave the process.
func UserMessage(err error) string {
	for _, sentinel := range []error{
		ErrInvalidInput,
		ErrPostUnavailable,
		ErrNoMedia,
		ErrUpstreamBlocked,
		ErrResourceUnavailable,
		ErrNavigationTimeout,
		ErrNavigationError,
		ErrDownloadFailed,
		ErrAnalysisFailed,
		ErrRateLimited,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}
