package problem

import (
	"net/http"
	"time"
)

// Details represents an RFC 7807 compliant error response
// RFC 7807: Problem Details for HTTP APIs
type Details struct {
	// Type is a URI reference that identifies the problem type
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Status is the HTTP status code
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence of the problem
	Detail string `json:"detail"`
	// Instance is a URI reference that identifies the specific occurrence of the problem
	Instance string `json:"instance,omitempty"`
	// Code is the stable machine-readable reason code
	Code string `json:"code,omitempty"`
	// Timestamp when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// TraceID for request tracing and debugging
	TraceID string `json:"traceId,omitempty"`
	// Errors contains field-specific validation errors
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError represents a field-specific validation error
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Standard problem types with URIs
const (
	TypeValidationError = "https://api.tradepost.gg/errors/validation-error"
	TypeUnauthorized    = "https://api.tradepost.gg/errors/unauthorized"
	TypeForbidden       = "https://api.tradepost.gg/errors/forbidden"
	TypeNotFound        = "https://api.tradepost.gg/errors/not-found"
	TypeConflict        = "https://api.tradepost.gg/errors/conflict"
	TypeRateLimit       = "https://api.tradepost.gg/errors/rate-limit"
	TypeInternalError   = "https://api.tradepost.gg/errors/internal-error"
)

// New creates a new RFC 7807 problem
func New(problemType, title string, status int, detail, instance string) *Details {
	return &Details{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		Timestamp: time.Now().UTC(),
	}
}

// WithCode attaches a stable reason code
func (d *Details) WithCode(code string) *Details {
	d.Code = code
	return d
}

// WithTraceID adds a trace ID to the problem details
func (d *Details) WithTraceID(traceID string) *Details {
	d.TraceID = traceID
	return d
}

// WithFieldErrors adds field-level validation errors
func (d *Details) WithFieldErrors(errors []FieldError) *Details {
	d.Errors = errors
	return d
}

// NewValidation creates a validation problem
func NewValidation(detail, instance string) *Details {
	return New(TypeValidationError, "Validation Error", http.StatusBadRequest, detail, instance)
}

// NewUnauthorized creates an unauthorized problem
func NewUnauthorized(detail, instance string) *Details {
	return New(TypeUnauthorized, "Unauthorized", http.StatusUnauthorized, detail, instance)
}

// NewForbidden creates a forbidden problem
func NewForbidden(detail, instance string) *Details {
	return New(TypeForbidden, "Forbidden", http.StatusForbidden, detail, instance)
}

// NewNotFound creates a not-found problem
func NewNotFound(detail, instance string) *Details {
	return New(TypeNotFound, "Not Found", http.StatusNotFound, detail, instance)
}

// NewConflict creates a conflict problem
func NewConflict(detail, instance string) *Details {
	return New(TypeConflict, "Conflict", http.StatusConflict, detail, instance)
}

// NewInternal creates an internal-error problem
func NewInternal(detail, instance string) *Details {
	return New(TypeInternalError, "Internal Server Error", http.StatusInternalServerError, detail, instance)
}
