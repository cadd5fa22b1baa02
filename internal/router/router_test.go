package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nativegate/gateway/internal/domain"
	"github.com/nativegate/gateway/internal/services"
)

type fakeEndpoints struct {
	domain.EndpointRepository
	routable []*domain.Endpoint
}

func (f *fakeEndpoints) FindRoutable(host, method string) ([]*domain.Endpoint, error) {
	return f.routable, nil
}

type fakeBindings struct {
	domain.EndpointServiceRepository
}

func (fakeBindings) ListForEndpoint(id uuid.UUID) ([]*domain.EndpointServiceAlias, error) {
	return nil, nil
}

type fakeExecutor struct {
	resp *domain.Response
	err  error
}

func (f *fakeExecutor) Execute(ctx context.Context, endpointID uuid.UUID, req domain.Request, bundle *services.Bundle, timeout time.Duration) (*domain.Response, error) {
	return f.resp, f.err
}

func newTestRouter(endpoints []*domain.Endpoint, exec *fakeExecutor) *Router {
	return New(&fakeEndpoints{routable: endpoints}, fakeBindings{}, services.NewRuntime(), exec, zap.NewNop())
}

func TestServeHTTPNoMatch404(t *testing.T) {
	r := newTestRouter(nil, &fakeExecutor{})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeHTTPMatchDispatches(t *testing.T) {
	ep := &domain.Endpoint{ID: uuid.New(), Host: "example.com", Method: http.MethodGet, PathPattern: "/widgets/{id}", Compiled: true}
	exec := &fakeExecutor{resp: &domain.Response{Status: 200, Body: "ok"}}
	r := newTestRouter([]*domain.Endpoint{ep}, exec)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/widgets/42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

// TestServeHTTPUncompiledMatch503 covers §4.4 step 4: a matched endpoint
// that is enabled but not yet compiled must answer 503 with the literal
// body "Endpoint not compiled", distinct from a 404 no-match, and must
// never reach the executor.
func TestServeHTTPUncompiledMatch503(t *testing.T) {
	ep := &domain.Endpoint{ID: uuid.New(), Host: "example.com", Method: http.MethodGet, PathPattern: "/widgets", Compiled: false}
	exec := &fakeExecutor{}
	r := newTestRouter([]*domain.Endpoint{ep}, exec)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/widgets", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Endpoint not compiled", w.Body.String())
}

func TestServeHTTPNotCompiled503(t *testing.T) {
	ep := &domain.Endpoint{ID: uuid.New(), Host: "example.com", Method: http.MethodGet, PathPattern: "/widgets", Compiled: true}
	exec := &fakeExecutor{err: domain.ErrNotCompiled}
	r := newTestRouter([]*domain.Endpoint{ep}, exec)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/widgets", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Endpoint not compiled", w.Body.String())
}

func TestServeHTTPDraining503(t *testing.T) {
	ep := &domain.Endpoint{ID: uuid.New(), Host: "example.com", Method: http.MethodGet, PathPattern: "/widgets", Compiled: true}
	exec := &fakeExecutor{err: domain.ErrDraining}
	r := newTestRouter([]*domain.Endpoint{ep}, exec)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/widgets", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Handler updating, please retry", w.Body.String())
}

func TestServeHTTPTimeout504(t *testing.T) {
	ep := &domain.Endpoint{ID: uuid.New(), Host: "example.com", Method: http.MethodGet, PathPattern: "/widgets", Compiled: true}
	exec := &fakeExecutor{err: domain.ErrTimeout}
	r := newTestRouter([]*domain.Endpoint{ep}, exec)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/widgets", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestHostWithoutPort(t *testing.T) {
	assert.Equal(t, "example.com", hostWithoutPort("example.com:8080"))
	assert.Equal(t, "example.com", hostWithoutPort("example.com"))
	assert.Equal(t, "localhost", hostWithoutPort(""))
}

func TestBestMatchPrefersMoreSpecific(t *testing.T) {
	a := &domain.Endpoint{ID: uuid.New(), PathPattern: "/widgets/{id}"}
	b := &domain.Endpoint{ID: uuid.New(), PathPattern: "/widgets/special"}

	best, params, ok := bestMatch([]*domain.Endpoint{a, b}, "/widgets/special")
	require.True(t, ok)
	assert.Equal(t, b.ID, best.ID)
	assert.Empty(t, params)
}
