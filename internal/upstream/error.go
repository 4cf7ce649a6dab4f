// Package upstream defines the typed error returned when a named upstream
// call fails.
package upstream

import (
	"errors"
	"fmt"
)

// maxDetail caps the response-body excerpt carried in an Error so a
// misbehaving upstream cannot bloat logs or debug snapshots.
const maxDetail = 300

// Error describes a failed call to a named upstream service with enough
// context to diagnose it without logging credentials.
type Error struct {
	Service   string
	Operation string
	URL       string
	Status    int
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s failed", e.Service, e.Operation)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error, truncating detail to a bounded excerpt.
func New(service, operation, url string, status int, detail string, err error) *Error {
	return &Error{
		Service:   service,
		Operation: operation,
		URL:       url,
		Status:    status,
		Detail:    Truncate(detail),
		Err:       err,
	}
}

// Truncate bounds a response-body excerpt to maxDetail bytes.
func Truncate(s string) string {
	if len(s) > maxDetail {
		return s[:maxDetail]
	}
	return s
}

// Detail is the JSON-safe shape of an error stored by the observability
// recorder and surfaced on the debug endpoint.
type Detail struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Service   string `json:"service,omitempty"`
	Operation string `json:"operation,omitempty"`
	URL       string `json:"url,omitempty"`
	Status    int    `json:"status,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Serialize flattens any error into a Detail, preserving upstream context
// when the error is (or wraps) an *Error.
func Serialize(err error) *Detail {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return &Detail{
			Name:      "UpstreamServiceError",
			Message:   err.Error(),
			Service:   ue.Service,
			Operation: ue.Operation,
			URL:       ue.URL,
			Status:    ue.Status,
			Detail:    ue.Detail,
		}
	}
	return &Detail{Name: "Error", Message: err.Error()}
}
