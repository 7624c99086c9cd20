package api

import (
	"encoding/json"
	"net/http"

	"studiobook/internal/apperr"
)

const codeRateLimited = "RATE_LIMITED"

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Issues  []apperr.Issue `json:"issues,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error, fallbackCode string) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal(fallbackCode, "internal error", err)
	}

	body := errorBody{Code: appErr.Code, Message: appErr.Message}
	if appErr.Kind == apperr.KindInternal {
		body.Message = "internal error"
	} else {
		body.Issues = appErr.Issues
		body.Details = appErr.Details
	}
	writeJSON(w, appErr.Status, map[string]errorBody{"error": body})
}

func writeRateLimited(w http.ResponseWriter) {
	writeJSON(w, http.StatusTooManyRequests, map[string]errorBody{"error": {
		Code:    codeRateLimited,
		Message: "too many requests",
	}})
}
