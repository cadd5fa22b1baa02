package router

import (
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/nativegate/gateway/internal/domain"
)

// maxBodyBytes caps the amount of request body the gateway will buffer into
// a handler's envelope (§6).
const maxBodyBytes = 1 << 20 // 1 MiB

// buildRequest reads r into a domain.Request, binding pathParams from the
// matched route pattern. Query parameters keep only the last value per
// name, matching §3's "query as a flat name→value map" shape.
func buildRequest(r *http.Request, pathParams map[string]string) (domain.Request, error) {
	query := make(map[string]string, len(r.URL.Query()))
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[len(values)-1]
		}
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return domain.Request{}, err
	}
	if len(body) > maxBodyBytes {
		return domain.Request{}, errBodyTooLarge
	}

	return domain.Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      query,
		Headers:    headers,
		Body:       string(body),
		PathParams: pathParams,
		RequestID:  uuid.NewString(),
	}, nil
}

var errBodyTooLarge = bodyTooLargeError{}

type bodyTooLargeError struct{}

func (bodyTooLargeError) Error() string { return "request body exceeds the 1 MiB limit" }
