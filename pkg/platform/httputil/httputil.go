// Package httputil provides shared JSON response and request decoding helpers
// for HTTP handlers. Error responses follow a fixed shape:
//
//	{"error": "<code>", "error_description": "<message>"}
//
// Internal errors omit the description so infrastructure details never reach
// clients.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "pfascert/pkg/domain-errors"
)

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON serializes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a coded domain error to an HTTP status and JSON body.
// Uncoded errors are treated as internal.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := ""
	var de *dErrors.Error
	if errors.As(err, &de) {
		code = de.Code
		message = de.Message
	}

	body := errorBody{Error: string(code)}
	// Internal and storage errors keep their details server-side.
	if code != dErrors.CodeInternal && code != dErrors.CodeStorageUnavailable {
		body.ErrorDescription = message
	}
	WriteJSON(w, statusFor(code), body)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeInvalidInput:
		return http.StatusUnprocessableEntity
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeDuplicateEvidence, dErrors.CodeAlreadyDeleted:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeIntegrityFailure:
		// Never a 2xx with corrupted bytes; distinct from not-found.
		return http.StatusBadGateway
	case dErrors.CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes the request body into T. Failures come back as a
// bad_request coded error for WriteError to render.
func DecodeJSON[T any](r *http.Request) (T, error) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var zero T
		return zero, dErrors.Wrap(dErrors.CodeBadRequest, "invalid JSON body", err)
	}
	return req, nil
}
