package scrape

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure a scrape can end with.
type Kind int

// Failure kinds, one per way a request can be short-circuited.
const (
	KindInternal Kind = iota
	KindUnauthorized
	KindAllWorkersBusy
	KindLaunchFailed
	KindJobFailed
	KindJobTimeout
	KindResultFetchFailed
	KindResultFormatInvalid
)

var kindNames = map[Kind]string{
	KindInternal:            "internal",
	KindUnauthorized:        "unauthorized",
	KindAllWorkersBusy:      "all_workers_busy",
	KindLaunchFailed:        "launch_failed",
	KindJobFailed:           "job_failed",
	KindJobTimeout:          "job_timeout",
	KindResultFetchFailed:   "result_fetch_failed",
	KindResultFormatInvalid: "result_format_invalid",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HTTPStatus maps the kind onto the status code returned to clients.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindAllWorkersBusy:
		return http.StatusServiceUnavailable
	case KindJobTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is the failure type returned by every stage.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// Unauthorized builds the error returned for missing or invalid credentials.
func Unauthorized(msg string, cause error) error {
	return newError(KindUnauthorized, msg, cause)
}

// ErrSessionNotFound is returned by session stores that cannot find a user.
var ErrSessionNotFound = errors.New("session not found")

// ErrMaxParallelism is returned by Provider.Launch while the account runs as
// many containers as it is allowed to.
var ErrMaxParallelism = errors.New("maximum parallelism reached")

// ProviderError is a non-success response from the provider API.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider returned status %d: %s", e.Op, e.StatusCode, e.Body)
}
