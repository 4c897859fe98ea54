package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tordrt/foodstats"
)

// requestError is a malformed request rejected before reaching the session.
type requestError struct {
	status int
	msg    string
}

func newRequestError(status int, msg string) *requestError {
	return &requestError{status: status, msg: msg}
}

func (e *requestError) Error() string {
	return e.msg
}

// errorBody is the JSON body of every error response. Position is set
// for syntax errors tied to a byte offset of the query text.
type errorBody struct {
	Error    string `json:"error"`
	Position *int   `json:"position,omitempty"`
}

func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.Is(err, foodstats.ErrUnknownQuery),
		errors.Is(err, foodstats.ErrUnknownView),
		errors.Is(err, foodstats.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, foodstats.ErrSyntax):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, foodstats.ErrDataAccess):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// outcome is the status label recorded in metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, foodstats.ErrSyntax):
		return "syntax"
	case statusFor(err) < http.StatusInternalServerError:
		return "invalid"
	default:
		return "error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var syntaxErr *foodstats.SyntaxError
	if errors.As(err, &syntaxErr) && syntaxErr.Pos >= 0 {
		pos := syntaxErr.Pos
		body.Position = &pos
	}
	writeJSON(w, statusFor(err), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
