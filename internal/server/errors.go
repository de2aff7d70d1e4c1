package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	"github.com/smallbiznis/billingportal/internal/customerref"
	gatewaydomain "github.com/smallbiznis/billingportal/internal/gateway/domain"
	profiledomain "github.com/smallbiznis/billingportal/internal/profile/domain"
	signupdomain "github.com/smallbiznis/billingportal/internal/signup/domain"
	"gorm.io/gorm"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not_found")
	ErrRateLimited  = errors.New("rate_limited")
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors is a handler-level validation failure with field detail.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v *ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// retryableError marks a failure the client may safely repeat.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// ErrorHandlingMiddleware renders the last handler error unless a response
// has already been written.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		status, payload := mapError(last.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

// errorRule maps any of its sentinels to one response. Rules are checked in
// order, so more specific domains come first.
type errorRule struct {
	match   []error
	status  int
	typ     string
	message string
}

var errorRules = []errorRule{
	{
		match: []error{
			ErrUnauthorized,
			authdomain.ErrUnauthenticated,
			authdomain.ErrInvalidCredentials,
			authdomain.ErrInvalidSession,
			authdomain.ErrSessionNotFound,
			authdomain.ErrSessionExpired,
			authdomain.ErrSessionRevoked,
		},
		status: http.StatusUnauthorized, typ: "unauthorized", message: "unauthorized",
	},
	{
		match:  []error{customerref.ErrProfileNotFound, profiledomain.ErrNotFound},
		status: http.StatusNotFound, typ: "profile_not_found", message: "no billing profile is linked to this account",
	},
	{
		match:  []error{gatewaydomain.ErrArtifactNotFound},
		status: http.StatusNotFound, typ: "artifact_not_found", message: "document not found",
	},
	{
		match:  []error{gatewaydomain.ErrGatewayUnavailable},
		status: http.StatusBadGateway, typ: "gateway_unavailable", message: "billing documents are temporarily unavailable",
	},
	{
		match:  []error{authdomain.ErrUserExists, profiledomain.ErrAlreadyExists},
		status: http.StatusConflict, typ: "conflict", message: "an account with these details already exists",
	},
	{
		match:  []error{ErrRateLimited},
		status: http.StatusTooManyRequests, typ: "rate_limited", message: "too many requests",
	},
	{
		match:  []error{ErrNotFound, authdomain.ErrUserNotFound, gorm.ErrRecordNotFound},
		status: http.StatusNotFound, typ: "not_found", message: "not found",
	},
	{
		match:  []error{signupdomain.ErrProfileCreationFailed},
		status: http.StatusInternalServerError, typ: "profile_creation_failed", message: "account created but the billing profile could not be saved",
	},
}

// validationCodes lists domain errors that surface as a single-field 400.
var validationCodes = []struct {
	err  error
	code string
}{
	{signupdomain.ErrInvalidRequest, "invalid_request"},
	{authdomain.ErrInvalidEmail, "invalid_email"},
	{authdomain.ErrInvalidPassword, "invalid_password"},
	{profiledomain.ErrInvalidID, "invalid_id"},
	{gatewaydomain.ErrInvalidFormat, "invalid_format"},
	{gatewaydomain.ErrInvalidDocumentID, "invalid_document_id"},
}

func mapError(err error) (int, errorPayload) {
	if fields := validationFields(err); fields != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fields,
		}
	}

	for _, rule := range errorRules {
		for _, target := range rule.match {
			if !errors.Is(err, target) {
				continue
			}
			payload := errorPayload{Type: rule.typ, Message: rule.message}
			if rule.status == http.StatusBadGateway {
				var rErr *retryableError
				payload.Retryable = errors.As(err, &rErr)
			}
			return rule.status, payload
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// validationFields returns nil when err is not a validation failure.
func validationFields(err error) []ValidationError {
	if err == nil {
		return nil
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr.Errors
	}

	var profileErr *profiledomain.ValidationError
	if errors.As(err, &profileErr) && profileErr != nil {
		fields := make([]ValidationError, 0, len(profileErr.Fields))
		for _, f := range profileErr.Fields {
			fields = append(fields, ValidationError{Field: f.Field, Code: f.Code, Message: validationMessage(f.Code)})
		}
		return fields
	}

	for _, vc := range validationCodes {
		if errors.Is(err, vc.err) {
			field := strings.TrimPrefix(vc.code, "invalid_")
			if vc.code == "invalid_request" {
				field = "request"
			}
			return []ValidationError{{Field: field, Code: vc.code, Message: validationMessage(vc.code)}}
		}
	}
	return nil
}

func validationMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "required":
		return "this field is required"
	case "too_long":
		return "value is too long"
	case "too_short":
		return "value is too short"
	case "mismatch":
		return "values do not match"
	default:
		return "invalid value"
	}
}
