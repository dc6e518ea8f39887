// shared/api/response.go
package api

import (
	"encoding/json"
	"net/http"
)

// JSONErrorResponse is the common shape of every error body. Handlers may add
// extra fields next to these through WriteErrorFields.
type JSONErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes {error: kind, message, code}.
func WriteError(w http.ResponseWriter, status int, kind, message string) {
	WriteErrorFields(w, status, kind, message, nil)
}

// WriteErrorFields writes an error body carrying extra fields for the caller.
func WriteErrorFields(w http.ResponseWriter, status int, kind, message string, fields map[string]interface{}) {
	body := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		body[k] = v
	}
	body["error"] = kind
	body["message"] = message
	body["code"] = status

	if err := WriteJSON(w, status, body); err != nil {
		http.Error(w, message, status)
	}
}

// WriteBadRequest convenience function
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "BadRequest", message)
}

// WriteInternalServerError convenience function
func WriteInternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "Internal", message)
}
