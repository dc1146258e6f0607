package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"clinician-console/internal/credential"
)

// ErrNoCredential is returned before any network call when no token is held.
var ErrNoCredential = credential.ErrNoCredential

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Method string
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, http.StatusText(e.Code))
}

// Unauthorized is true for the codes that end a session.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// NetworkError means no response was received at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Op + ": " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError blocks a submission locally; no request is made.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

type Kind int

const (
	KindNone Kind = iota
	KindNoCredential
	KindUnauthorized
	KindServer
	KindNetwork
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNoCredential:
		return "no credential"
	case KindUnauthorized:
		return "unauthorized"
	case KindServer:
		return "server error"
	case KindNetwork:
		return "network failure"
	case KindValidation:
		return "validation"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindOf classifies err. NoCredential and Unauthorized end the session;
// Server and Network are transient; Validation never left the process.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrNoCredential) {
		return KindNoCredential
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Unauthorized() {
			return KindUnauthorized
		}
		return KindServer
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var ne *NetworkError
	if errors.As(err, &ne) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindServer
}

// EndsSession reports whether err means the credential must be discarded.
func EndsSession(err error) bool {
	k := KindOf(err)
	return k == KindNoCredential || k == KindUnauthorized
}
