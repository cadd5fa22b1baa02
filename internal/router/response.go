package router

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/nativegate/gateway/internal/domain"
)

// gatewayErrorResponse is the gateway's own error envelope for failures it
// produces itself (no match, lookup failure, oversized body, timeout,
// panic) other than the two plain-text 503s written by writePlainError — distinct
// from whatever a handler's own Response body contains, which is passed
// through untouched.
type gatewayErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(gatewayErrorResponse{Error: message})
}

// writePlainError writes body verbatim with no JSON envelope. §4.4 and its
// E2E scenarios mandate exact literal bodies ("Endpoint not compiled",
// "Handler updating, please retry") for these two gateway-produced errors,
// unlike the JSON envelope used elsewhere in this file.
func writePlainError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// writeResponse copies a handler's declared status, headers, and body onto
// the real ResponseWriter. A binary body (base64, flagged by the sentinel
// header per §3/§6) is decoded before being written so the client receives
// raw bytes.
func writeResponse(w http.ResponseWriter, resp *domain.Response) {
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}

	status := int(resp.Status)
	if status == 0 {
		status = http.StatusOK
	}

	if resp.Headers[domain.BinaryResponseHeaderName] == domain.BinaryResponseHeaderValue {
		w.Header().Del(domain.BinaryResponseHeaderName)
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "handler returned invalid binary body")
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write(decoded)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}
