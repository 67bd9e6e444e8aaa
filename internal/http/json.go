package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/vss/sso-portal/internal/errors"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// errorBody is the envelope written by WriteAppError.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// WriteAppError maps err onto an AppError and writes it with the matching status.
// Internal causes are not echoed to the client.
func WriteAppError(w http.ResponseWriter, err error) {
	mapped := apperrors.MapAuthError(err)
	var appErr *apperrors.AppError
	if !asAppError(mapped, &appErr) {
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: string(apperrors.ErrCodeInternal), Message: "internal error"})
		return
	}

	body := errorBody{
		Error:     string(appErr.Code),
		Message:   appErr.Message,
		Field:     appErr.Field,
		ErrorKind: appErr.Kind,
	}
	if appErr.Code == apperrors.ErrCodeInternal {
		body.Message = "internal error"
	}
	WriteJSON(w, statusForCode(appErr.Code), body)
}

func asAppError(err error, target **apperrors.AppError) bool {
	return err != nil && errors.As(err, target)
}

func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeCanceled:
		// nginx convention for a client that went away.
		return 499
	default:
		return http.StatusInternalServerError
	}
}
