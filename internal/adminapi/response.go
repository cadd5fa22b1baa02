// Package adminapi implements the administrative HTTP surface (§3, §4.2,
// §4.3): CRUD over domains/collections/endpoints/services plus the
// lifecycle actions (code, compile, start, stop, activate, deactivate,
// test) that move an endpoint or service between its states.
package adminapi

import (
	"encoding/json"
	"net/http"
)

// Response and ErrorResponse mirror the teacher's envelope shape
// (internal/delivery/http/response.go) field-for-field.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Message: message, Data: data})
}

func writeErr(w http.ResponseWriter, status int, tag string, err error) {
	resp := ErrorResponse{Success: false, Error: tag}
	if err != nil {
		resp.Message = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeErr(w, http.StatusBadRequest, "validation_error", err)
}

func writeNotFound(w http.ResponseWriter, err error) {
	writeErr(w, http.StatusNotFound, "not_found", err)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeErr(w, http.StatusInternalServerError, "internal_error", err)
}

func writeConflict(w http.ResponseWriter, err error) {
	writeErr(w, http.StatusConflict, "conflict", err)
}

func decodeJSON(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
