package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "MW-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500 && status != http.StatusBadGateway:
		switch {
		case strings.Contains(raw, "no space left"), strings.Contains(raw, "permission denied"):
			return apiError{
				Code:    "MW-FS-5001",
				Message: "Upload could not be saved on the server. Check the upload directory.",
			}
		case strings.Contains(raw, "embed"):
			return apiError{
				Code:    "MW-QA-5002",
				Message: "Embedding provider unavailable. The paper was not indexed.",
			}
		default:
			return apiError{
				Code:    "MW-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "MW-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "MW-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "MW-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusRequestEntityTooLarge:
		code = "MW-API-4130"
		msg = "The uploaded file is too large."
	case status == http.StatusUnprocessableEntity:
		code = "MW-QA-4220"
		msg = "No text or figures could be extracted from the uploaded PDF."
	case status == http.StatusBadGateway:
		code = "MW-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "question"):
			msg = "A question is required."
		case strings.Contains(raw, "sessionid"), strings.Contains(raw, "session_id"):
			msg = "session_id must be a valid session id."
		case strings.Contains(raw, "session not found"):
			msg = "Upload session was not found or has expired. Upload the paper again."
		case strings.Contains(raw, "no file provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}
