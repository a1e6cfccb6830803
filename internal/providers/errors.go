package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrEmptyAnswer        = errors.New("empty answer")
	ErrUnknownProvider    = errors.New("unknown provider")
)

type Kind string

const (
	KindConfig    Kind = "config"
	KindTransport Kind = "transport"
	KindTimeout   Kind = "timeout"
	KindCanceled  Kind = "canceled"
	KindAuth      Kind = "auth"
	KindHTTP      Kind = "http"
	KindMalformed Kind = "malformed"
	KindPanic     Kind = "panic"
)

// ProviderError is the only error shape that leaves an adapter.
// Msg is human readable and ends up inside the failure sentinel.
type ProviderError struct {
	Provider Name
	Kind     Kind
	Msg      string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Kind, e.Msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newError(p Name, k Kind, msg string, err error) *ProviderError {
	return &ProviderError{Provider: p, Kind: k, Msg: msg, Err: err}
}

// AsProviderError normalizes any error into a *ProviderError tagged with p.
func AsProviderError(p Name, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Provider == "" {
			cp := *pe
			cp.Provider = p
			return &cp
		}
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(p, KindTimeout, "timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return newError(p, KindCanceled, "canceled", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return newError(p, KindTimeout, "timeout", err)
	}
	return newError(p, KindTransport, err.Error(), err)
}

func missingKey(p Name, env string) *ProviderError {
	return newError(p, KindConfig, "missing credentials ("+env+")", ErrMissingCredentials)
}

func statusError(p Name, resp *http.Response) *ProviderError {
	kind := KindHTTP
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = KindAuth
	}
	return newError(p, kind, string(p)+" http "+resp.Status, nil)
}
