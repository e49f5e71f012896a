package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error. Details maps offending fields to the
// rule they broke.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	TotalCount *int      `json:"total_count,omitempty"`
}

const apiVersion = "v1"

// Error codes.
const (
	codeValidation   = "validation_error"
	codeNotFound     = "not_found"
	codePrecondition = "precondition_failed"
	codeConflict     = "conflict"
	codeStorage      = "storage_unavailable"
	codeInternal     = "internal_error"
)

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp JSONResponse) {
	resp.Success = status >= 200 && status < 300
	if resp.Meta == nil {
		resp.Meta = &ResponseMeta{}
	}
	resp.Meta.Timestamp = time.Now().UTC()
	resp.Meta.Version = apiVersion
	resp.RequestID = middleware.GetReqID(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a success envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, r, status, JSONResponse{Data: data})
}

// writeList writes a success envelope carrying the item count.
func writeList[T any](w http.ResponseWriter, r *http.Request, items []T) {
	if items == nil {
		items = []T{}
	}
	count := len(items)
	writeEnvelope(w, r, http.StatusOK, JSONResponse{Data: items, Meta: &ResponseMeta{TotalCount: &count}})
}

// writeJSONError writes an error envelope.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]string) {
	writeEnvelope(w, r, status, JSONResponse{Error: &APIError{Code: code, Message: message, Details: details}})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// errorStatus maps an error kind to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, codeValidation
	case shared.IsNotFound(err):
		return http.StatusNotFound, codeNotFound
	case shared.IsPrecondition(err):
		return http.StatusUnprocessableEntity, codePrecondition
	case shared.IsConflict(err):
		return http.StatusConflict, codeConflict
	case shared.IsStorage(err):
		return http.StatusServiceUnavailable, codeStorage
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// respondError writes the envelope for err. Server-side failures are logged
// and their message is not exposed.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("code", code),
			logger.Err(err),
		)
		message := "an unexpected error occurred"
		if status == http.StatusServiceUnavailable {
			message = "storage is unavailable, retry later"
		}
		writeJSONError(w, r, status, code, message, nil)
		return
	}
	writeJSONError(w, r, status, code, errorMessage(err), errorDetails(err))
}

func errorMessage(err error) string {
	var ire *invalidRequestError
	if errors.As(err, &ire) {
		return ire.Error()
	}
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func errorDetails(err error) map[string]string {
	var ire *invalidRequestError
	if errors.As(err, &ire) {
		return ire.fields
	}
	fields := shared.FieldsOf(err)
	if len(fields) == 0 {
		return nil
	}
	details := make(map[string]string, len(fields))
	for _, f := range fields {
		details[f] = "invalid"
	}
	return details
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING
// ══════════════════════════════════════════════════════════════════════════════

const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// invalidRequestError is a malformed or rule-breaking request body.
type invalidRequestError struct {
	message string
	fields  map[string]string
}

func (e *invalidRequestError) Error() string { return e.message }

// Is makes the error match shared.ErrValidation.
func (e *invalidRequestError) Is(target error) bool { return target == shared.ErrValidation }

func newInvalidRequest(message string, fields map[string]string) *invalidRequestError {
	return &invalidRequestError{message: message, fields: fields}
}

// decodeJSON decodes the request body into dst and validates its struct tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return newInvalidRequest("request body is required", nil)
		default:
			return newInvalidRequest(fmt.Sprintf("malformed request body: %v", err), nil)
		}
	}
	return validateStruct(dst)
}

// validateStruct maps validator.ValidationErrors to field → rule details.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return newInvalidRequest("invalid request", nil)
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fieldPath(fe)] = fe.Tag()
	}
	return newInvalidRequest("request validation failed", fields)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
