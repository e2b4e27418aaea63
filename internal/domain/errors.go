package domain

import (
	"errors"
	"strings"
)

// ErrorKind classifies pipeline failures. Every kind is terminal for the current run.
type ErrorKind string

const (
	KindConfiguration  ErrorKind = "configuration_error"
	KindUpstreamAuth   ErrorKind = "upstream_auth_error"
	KindUpstreamFetch  ErrorKind = "upstream_fetch_error"
	KindUpstreamUpload ErrorKind = "upstream_upload_error"
	KindDispatch       ErrorKind = "dispatch_error"
)

var (
	// ErrNoActivityID is returned when a run cannot resolve which activity to sync.
	ErrNoActivityID = errors.New("no activity id")
	// ErrMissingCredentials is returned when a client id, secret or refresh token is absent.
	ErrMissingCredentials = errors.New("missing credentials")
)

// Error carries the failure kind, a short message, and the upstream response body when one exists.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	switch {
	case e.Body != "":
		b.WriteString(": ")
		b.WriteString(e.Body)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ConfigurationError wraps a local setup problem detected before any network call.
func ConfigurationError(message string, err error) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Err: err}
}

// UpstreamError describes a rejected or failed call to a remote platform.
func UpstreamError(kind ErrorKind, message string, status int, body []byte, err error) *Error {
	return &Error{
		Kind:       kind,
		Message:    message,
		StatusCode: status,
		Body:       strings.TrimSpace(string(body)),
		Err:        err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
