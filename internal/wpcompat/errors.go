package wpcompat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/pressbridge/internal/token"
)

// APIError is the error shape publishing clients parse:
// {"code": ..., "message": ..., "data": {"status": ...}}.
type APIError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    errorData `json:"data"`
}

type errorData struct {
	Status int `json:"status"`
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

// Status is the HTTP status the error is reported with.
func (e *APIError) Status() int { return e.Data.Status }

func newError(status int, code, message string) *APIError {
	return &APIError{Code: code, Message: message, Data: errorData{Status: status}}
}

func (e *APIError) response() Response {
	return Response{Status: e.Status(), Headers: map[string]string{}, Body: e}
}

func errNotConfigured() *APIError {
	return newError(http.StatusInternalServerError, "server_not_configured", "Server not configured")
}

func errMissingToken() *APIError {
	return newError(http.StatusForbidden, "rest_cannot_access", "Sorry, you are not allowed to do that.")
}

func errUnknownClient() *APIError {
	return newError(http.StatusForbidden, "rest_cannot_access", "Unrecognized client")
}

func errInvalidJSON() *APIError {
	return newError(http.StatusBadRequest, "rest_invalid_json", "Invalid JSON body passed.")
}

func errInvalidParam(message string) *APIError {
	return newError(http.StatusBadRequest, "rest_invalid_param", message)
}

func errCannotCreate() *APIError {
	return newError(http.StatusInternalServerError, "rest_cannot_create", "Sorry, the item could not be created.")
}

func errNotFound() *APIError {
	return newError(http.StatusNotFound, "not_found", "No route was found matching the URL and request method.")
}

// errorFromToken maps token failures onto the status/code pairs clients
// expect. It is the only place that translation happens.
func errorFromToken(err error) *APIError {
	switch {
	case errors.Is(err, token.ErrNotConfigured):
		return errNotConfigured()
	case errors.Is(err, token.ErrInvalidUsername):
		return newError(http.StatusForbidden, "invalid_username", "Unknown username. Check again or try your email address.")
	case errors.Is(err, token.ErrIncorrectPassword):
		return newError(http.StatusForbidden, "incorrect_password", "The password you entered for that username is incorrect.")
	case errors.Is(err, token.ErrMalformedToken):
		return newError(http.StatusForbidden, "rest_token_invalid", "Malformed token")
	case errors.Is(err, token.ErrExpired):
		return newError(http.StatusForbidden, "invalid_token", "Expired token")
	case errors.Is(err, token.ErrNotYetValid):
		return newError(http.StatusForbidden, "invalid_token", "Token not yet valid")
	case errors.Is(err, token.ErrIssuerMismatch):
		return newError(http.StatusUnauthorized, "bad_issuer", "The iss do not match with this server")
	case errors.Is(err, token.ErrMalformedClaims):
		return newError(http.StatusUnauthorized, "bad_request", "User ID not found in the token")
	}
	return newError(http.StatusForbidden, "invalid_token", "Invalid token")
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// WriteError writes a structured error response.
func WriteError(w http.ResponseWriter, e *APIError) {
	WriteJSON(w, e.Status(), e)
}

// writeResponse replays a pipeline Response onto a real connection.
func writeResponse(w http.ResponseWriter, resp Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	WriteJSON(w, resp.Status, resp.Body)
}
