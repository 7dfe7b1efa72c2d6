// Package envelope defines the serialized message protocol spoken between
// page clients and the background agent, plus the error kinds every layer
// above the transport reports with.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies the request a page client is making.
type MessageType string

const (
	MessageAnalyzeComments MessageType = "ANALYZE_COMMENTS"
	MessageGetSettings     MessageType = "GET_SETTINGS"
	MessageUpdateSettings  MessageType = "UPDATE_SETTINGS"
	MessageHealthCheck     MessageType = "HEALTH_CHECK"
)

// Known reports whether t is one of the supported message types.
func (t MessageType) Known() bool {
	switch t {
	case MessageAnalyzeComments, MessageGetSettings, MessageUpdateSettings, MessageHealthCheck:
		return true
	}
	return false
}

// Message is a single request sent from a page context to the agent.
// Data carries the type-specific payload and may be empty.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the one and only answer to a Message. Either Data or Error
// is populated, never both. Err keeps the classified failure for callers
// that log or branch on its kind; it never crosses the wire.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// Resolve builds a successful response carrying data.
func Resolve(data any) Response {
	return Response{Success: true, Data: data}
}

// Reject builds a failed response from err. The user-visible text comes
// from the error's message.
func Reject(err error) Response {
	if err == nil {
		return Response{Success: false, Error: "unknown error"}
	}
	return Response{Success: false, Error: err.Error(), Err: err}
}

// Kind classifies a failure of the analysis layer.
type Kind string

const (
	KindNoComments             Kind = "NO_COMMENTS"
	KindServiceUnreachable     Kind = "SERVICE_UNREACHABLE"
	KindServiceError           Kind = "SERVICE_ERROR"
	KindMalformedResponse      Kind = "MALFORMED_RESPONSE"
	KindServiceReportedFailure Kind = "SERVICE_REPORTED_FAILURE"
	KindUnknownMessageType     Kind = "UNKNOWN_MESSAGE_TYPE"
	KindTimeout                Kind = "TIMEOUT"
)

// Error is a classified failure. Status is only set for KindServiceError
// and carries the upstream HTTP status code.
type Error struct {
	Kind    Kind
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds an Error of the given kind; with an empty message the
// kind's default text is used.
func NewError(kind Kind, message string) *Error {
	if message == "" {
		message = defaultMessage(kind)
	}
	return &Error{Kind: kind, Message: message}
}

// NewServiceError builds a KindServiceError carrying the upstream status.
func NewServiceError(status int) *Error {
	return &Error{
		Kind:    KindServiceError,
		Message: fmt.Sprintf("analysis service returned status %d", status),
		Status:  status,
	}
}

// NewUnknownMessageType builds the error for an unroutable message.
func NewUnknownMessageType(t MessageType) *Error {
	return &Error{
		Kind:    KindUnknownMessageType,
		Message: fmt.Sprintf("unknown message type %q", string(t)),
	}
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindNoComments:
		return "no comments found to analyze"
	case KindServiceUnreachable:
		return "analysis service is unreachable"
	case KindMalformedResponse:
		return "analysis service returned an unrecognized response"
	case KindServiceReportedFailure:
		return "analysis service reported a failure"
	case KindTimeout:
		return "analysis request timed out"
	case KindServiceError:
		return "analysis service returned an error status"
	case KindUnknownMessageType:
		return "unknown message type"
	}
	return "analysis failed"
}

// KindOf extracts the failure kind from err, unwrapping as needed.
// Unclassified errors report ok=false.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// AsError unwraps err to the classified form when present.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
