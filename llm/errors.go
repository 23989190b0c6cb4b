// Typed errors for the adaptation core.
//
// Detection ambiguity is deliberately NOT an error kind: an
// inconclusive detection resolves to FamilyUnknown with fallback
// confidence, which callers must treat as a legitimate degraded
// outcome.
package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ProviderError.
type ErrorKind string

const (
	// ErrTransport: DNS, connect or timeout failure during probe or
	// call. Recoverable by caller retry; never retried internally.
	ErrTransport ErrorKind = "transport"
	// ErrHTTP: the provider answered with a non-2xx status.
	ErrHTTP ErrorKind = "http"
	// ErrMalformedResponse: a 2xx body that does not match the resolved
	// family's schema. Usually signals family misdetection.
	ErrMalformedResponse ErrorKind = "malformed_response"
	// ErrConfig: the config snapshot or request is unusable.
	ErrConfig ErrorKind = "config"
)

// ProviderError is the typed error surfaced by the detector, adapters
// and dispatcher. The dispatcher only adds Stage context; it never
// masks the underlying kind.
type ProviderError struct {
	Kind   ErrorKind
	Status int
	Family ProviderFamily
	Stage  string
	Err    error
}

func (e *ProviderError) Error() string {
	msg := string(e.Kind)
	switch e.Kind {
	case ErrHTTP:
		msg = fmt.Sprintf("provider returned HTTP %d", e.Status)
	case ErrMalformedResponse:
		// Name the assumed family so the user can override a
		// misdetection with an explicit --family hint.
		msg = fmt.Sprintf("response does not match the %s schema (set an explicit family if this endpoint was misdetected)", e.Family)
	case ErrTransport:
		msg = "transport failure"
	case ErrConfig:
		msg = "invalid configuration"
	}
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a ProviderError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}

// HTTPStatus extracts the status of an ErrHTTP error, or 0.
func HTTPStatus(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Kind == ErrHTTP {
		return pe.Status
	}
	return 0
}

func malformedErr(family ProviderFamily, err error) *ProviderError {
	return &ProviderError{Kind: ErrMalformedResponse, Family: family, Err: err}
}

func configErr(stage string, err error) *ProviderError {
	return &ProviderError{Kind: ErrConfig, Stage: stage, Err: err}
}
