package fmrest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies every failure the pipeline can report.
type Kind int

const (
	// KindUnknown is any failure not otherwise classified.
	KindUnknown Kind = iota
	// KindRequest is a transport failure (DNS, connection, TLS, timeout).
	KindRequest
	// KindResponse means the response lacked expected HTTP metadata.
	KindResponse
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindMethodNotAllowed
	KindUnsupportedMediaType
	KindServerError
	// KindStatus is any other non-200 status that arrived without a body.
	KindStatus
	// KindAPI is a non-200 status with a structured message body.
	KindAPI
	KindDecoding
	KindEncoding
	// KindAuthType means the credentials needed for a call were missing or unusable.
	KindAuthType
)

var kindNames = [...]string{
	KindUnknown:              "unknown",
	KindRequest:              "request_failed",
	KindResponse:             "bad_response",
	KindBadRequest:           "bad_request",
	KindUnauthorized:         "unauthorized",
	KindForbidden:            "forbidden",
	KindNotFound:             "not_found",
	KindMethodNotAllowed:     "method_not_allowed",
	KindUnsupportedMediaType: "unsupported_media_type",
	KindServerError:          "server_error",
	KindStatus:               "status",
	KindAPI:                  "api_error",
	KindDecoding:             "decoding_failed",
	KindEncoding:             "encoding_failed",
	KindAuthType:             "auth_type",
}

// String returns a machine-readable snake_case name.
func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Suggestion returns a short hint for resolving errors of this kind.
func (k Kind) Suggestion() string {
	switch k {
	case KindRequest:
		return "Check network connectivity and the host name"
	case KindUnauthorized:
		return "The session token is missing or expired; store a fresh token"
	case KindAuthType:
		return "Configure a session token for this profile"
	case KindForbidden:
		return "Check the account privileges for this database"
	case KindNotFound:
		return "Verify the database, layout, and record exist"
	case KindBadRequest, KindMethodNotAllowed, KindUnsupportedMediaType:
		return "Check the request format and parameters"
	case KindServerError:
		return "The server encountered an error; try again later"
	case KindDecoding:
		return "The server response did not have the expected shape"
	case KindEncoding:
		return "The request payload could not be serialized"
	default:
		return ""
	}
}

// Error is the only error type returned by the request builder and pipeline.
type Error struct {
	Kind Kind
	// Code is the HTTP status code, when one was received.
	Code int
	// Messages holds the API's message list for KindAPI.
	Messages []Message
	// Detail is a human-readable description (e.g. for KindResponse).
	Detail string
	// Err is the underlying cause for request, decoding, encoding, and unknown errors.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRequest:
		return fmt.Sprintf("request failed: %v", e.Err)
	case KindResponse:
		return "invalid response: " + e.Detail
	case KindAPI:
		parts := make([]string, 0, len(e.Messages))
		for _, m := range e.Messages {
			parts = append(parts, m.String())
		}
		return fmt.Sprintf("API error (status %d): %s", e.Code, strings.Join(parts, "; "))
	case KindStatus:
		return fmt.Sprintf("unexpected status %d", e.Code)
	case KindDecoding:
		return fmt.Sprintf("decoding failed: %v", e.Err)
	case KindEncoding:
		return fmt.Sprintf("encoding failed: %v", e.Err)
	case KindAuthType:
		return "authentication: " + e.Detail
	case KindUnknown:
		if e.Err != nil {
			return fmt.Sprintf("unknown error: %v", e.Err)
		}
		return "unknown error"
	}
	text := http.StatusText(e.Code)
	if text == "" {
		text = e.Kind.String()
	}
	return fmt.Sprintf("%s (status %d)", text, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so sentinel comparisons work:
// errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == 0 || t.Code == e.Code)
}

// HasMessageCode reports whether the API returned a message with code.
func (e *Error) HasMessageCode(code int) bool {
	for _, m := range e.Messages {
		if m.Code == code {
			return true
		}
	}
	return false
}

// statusError maps a bodiless non-200 status to its named kind.
func statusError(code int) *Error {
	kind := KindStatus
	switch code {
	case http.StatusBadRequest:
		kind = KindBadRequest
	case http.StatusUnauthorized:
		kind = KindUnauthorized
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusMethodNotAllowed:
		kind = KindMethodNotAllowed
	case http.StatusUnsupportedMediaType:
		kind = KindUnsupportedMediaType
	case http.StatusInternalServerError:
		kind = KindServerError
	}
	return &Error{Kind: kind, Code: code}
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// AsError returns err as an *Error, wrapping foreign errors as KindUnknown.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindUnknown, Err: err}
}

// IsNotFound checks if the error is a 404 with no message body.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsUnauthorized checks if the error is a 401 with no message body.
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

// IsForbidden checks if the error is a 403 with no message body.
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }

// IsAPIError checks if the API rejected the call with a message body.
func IsAPIError(err error) bool { return KindOf(err) == KindAPI }

// Data API message codes worth naming.
const (
	CodeOK                = 0
	CodeInvalidToken      = 952
	CodeNoRecordsMatch    = 401
	CodeRecordMissing     = 101
	CodeLayoutMissing     = 105
	CodeFieldMissing      = 102
	CodeInsufficientPrivs = 9
)

// IsNoRecordsMatch checks for the "no records match the request" API message.
// Finds with zero hits surface this way rather than as an empty result.
func IsNoRecordsMatch(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindAPI {
		return e.HasMessageCode(CodeNoRecordsMatch)
	}
	return false
}

// IsSessionExpired checks for an invalid or expired session token.
func IsSessionExpired(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Kind == KindUnauthorized {
		return true
	}
	return e.Kind == KindAPI && e.HasMessageCode(CodeInvalidToken)
}

// IsLayoutMissing checks for the "layout is missing" API message.
func IsLayoutMissing(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindAPI {
		return e.HasMessageCode(CodeLayoutMissing)
	}
	return false
}
