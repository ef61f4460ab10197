package coze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies API failures. Transport- and status-derived kinds
// surface unchanged through the tool layer; business errors embedded in 2xx
// bodies are wrapped as KindUpstream at the call sites that know to look.
type ErrorKind string

const (
	KindNetwork         ErrorKind = "network_error"
	KindTimeout         ErrorKind = "timeout_error"
	KindAuthentication  ErrorKind = "authentication_error"
	KindAuthorization   ErrorKind = "authorization_error"
	KindBadRequest      ErrorKind = "bad_request"
	KindNotFound        ErrorKind = "not_found"
	KindRateLimit       ErrorKind = "rate_limit_exceeded"
	KindServer          ErrorKind = "server_error"
	KindInvalidResponse ErrorKind = "invalid_response_format"
	KindSerialization   ErrorKind = "serialization_error"
	KindConfig          ErrorKind = "config_error"
	KindUpstream        ErrorKind = "upstream_error"
)

// Error is the taxonomy member carried across the client boundary.
// Code holds the platform's own numeric business code when the failure came
// from a `code != 0` field in an otherwise successful response.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
	Code    int64     `json:"code,omitempty"`
}

func (e *Error) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s: %s (code %d)", e.Kind, e.Message, e.Code)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// classifyStatus maps an HTTP status to a taxonomy kind. The mapping is by
// status code alone; the message is extracted separately.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 400:
		return KindBadRequest
	case status == 401:
		return KindAuthentication
	case status == 403:
		return KindAuthorization
	case status == 404:
		return KindNotFound
	case status == 429:
		return KindRateLimit
	case status >= 500 && status <= 599:
		return KindServer
	default:
		return KindNetwork
	}
}

// errorFromResponse builds an Error for a non-2xx response. The human-readable
// message comes from the body's "msg" field, then "message", then the raw body.
func errorFromResponse(status int, body []byte) *Error {
	message := string(body)
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg, ok := parsed["msg"].(string); ok && msg != "" {
			message = msg
		} else if msg, ok := parsed["message"].(string); ok && msg != "" {
			message = msg
		}
	}
	return &Error{Kind: classifyStatus(status), Message: message, Status: status}
}

// classifyTransport distinguishes timeouts from other transport failures.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: err.Error()}
	}
	return &Error{Kind: KindNetwork, Message: err.Error()}
}

// upstreamError wraps a nonzero business code from a 2xx body.
func upstreamError(code int64, msg string) *Error {
	if msg == "" {
		msg = "upstream request failed"
	}
	return &Error{Kind: KindUpstream, Message: msg, Code: code}
}
