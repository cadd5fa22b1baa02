// Package router implements the request dispatch path (§3, §6): match an
// incoming HTTP request against the enabled endpoints for its
// (host, method), build the handler envelope, and execute it through the
// registry.
package router

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nativegate/gateway/internal/domain"
	"github.com/nativegate/gateway/internal/metadata"
	"github.com/nativegate/gateway/internal/services"
)

// DefaultTimeout bounds every handler invocation the router dispatches (§5).
const DefaultTimeout = 30 * time.Second

// handlerExecutor is the slice of *registry.Registry the router depends on;
// an interface keeps the router package free of wazero and lets it be
// exercised with a fake in tests.
type handlerExecutor interface {
	Execute(ctx context.Context, endpointID uuid.UUID, req domain.Request, bundle *services.Bundle, timeout time.Duration) (*domain.Response, error)
}

// Router matches requests to compiled endpoints and drives their execution.
type Router struct {
	endpoints    domain.EndpointRepository
	bindings     domain.EndpointServiceRepository
	serviceTasks *services.Runtime
	registry     handlerExecutor
	logger       *zap.Logger
	timeout      time.Duration
}

func New(
	endpoints domain.EndpointRepository,
	bindings domain.EndpointServiceRepository,
	serviceTasks *services.Runtime,
	reg handlerExecutor,
	logger *zap.Logger,
) *Router {
	return &Router{
		endpoints:    endpoints,
		bindings:     bindings,
		serviceTasks: serviceTasks,
		registry:     reg,
		logger:       logger,
		timeout:      DefaultTimeout,
	}
}

// ServeHTTP implements http.Handler: the whole gateway surface is one
// catch-all route resolved dynamically against the metadata store, since
// endpoints are created and removed at runtime rather than fixed at
// startup (unlike the teacher's chi-registered route table).
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := hostWithoutPort(r.Host)

	candidates, err := rt.endpoints.FindRoutable(host, r.Method)
	if err != nil {
		rt.logger.Error("failed to look up routable endpoints", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve route")
		return
	}

	ep, pathParams, ok := bestMatch(candidates, r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "no endpoint matches this request")
		return
	}

	// A matched-but-uncompiled endpoint is distinct from no match at all
	// (§4.4 step 4): the normal state right after PUT .../code edits a
	// running endpoint, which clears compiled but leaves it enabled.
	if !ep.Compiled {
		writePlainError(w, http.StatusServiceUnavailable, "Endpoint not compiled")
		return
	}

	req, err := buildRequest(r, pathParams)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bundle, err := rt.bundleFor(ep)
	if err != nil {
		rt.logger.Error("failed to resolve service bindings", zap.Error(err), zap.String("endpoint_id", ep.ID.String()))
		writeError(w, http.StatusInternalServerError, "failed to resolve bound services")
		return
	}

	resp, err := rt.registry.Execute(r.Context(), ep.ID, req, bundle, rt.timeout)
	if err != nil {
		rt.writeExecError(w, ep, err)
		return
	}

	writeResponse(w, resp)
}

// bestMatch picks the candidate whose pattern matches path and binds its
// path parameters. Ties are broken by Specificity (§3's Open Question on
// unspecified match order): endpoint_repo.go's ConflictsWithExisting rejects overlapping
// patterns at create time, so in practice at most one candidate actually
// matches any given path — Specificity only orders the (currently
// unreachable) case of a conflict that slipped through.
func bestMatch(candidates []*domain.Endpoint, path string) (*domain.Endpoint, map[string]string, bool) {
	var best *domain.Endpoint
	var bestParams map[string]string
	bestScore := -1

	for _, ep := range candidates {
		params, ok := metadata.MatchPattern(ep.PathPattern, path)
		if !ok {
			continue
		}
		score := metadata.Specificity(ep.PathPattern)
		if score > bestScore {
			best, bestParams, bestScore = ep, params, score
		}
	}

	if best == nil {
		return nil, nil, false
	}
	return best, bestParams, true
}

func (rt *Router) bundleFor(ep *domain.Endpoint) (*services.Bundle, error) {
	bindings, err := rt.bindings.ListForEndpoint(ep.ID)
	if err != nil {
		return nil, err
	}
	return services.NewBundle(bindings, rt.serviceTasks), nil
}

func (rt *Router) writeExecError(w http.ResponseWriter, ep *domain.Endpoint, err error) {
	switch {
	case errors.Is(err, domain.ErrNotCompiled):
		// Reachable if the endpoint became uncompiled between the ServeHTTP
		// Compiled check and registry dispatch; same literal body either way.
		writePlainError(w, http.StatusServiceUnavailable, "Endpoint not compiled")
	case errors.Is(err, domain.ErrDraining):
		writePlainError(w, http.StatusServiceUnavailable, "Handler updating, please retry")
	case errors.Is(err, domain.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "handler timed out")
	case errors.Is(err, domain.ErrHandlerPanicked):
		rt.logger.Error("handler panicked", zap.String("endpoint_id", ep.ID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "handler panicked")
	default:
		rt.logger.Error("handler execution failed", zap.String("endpoint_id", ep.ID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "handler execution failed")
	}
}

// hostWithoutPort strips a ":port" suffix and defaults to "localhost" for a
// bare request line, mirroring how domains are registered without a port
// component (§3).
func hostWithoutPort(host string) string {
	if host == "" {
		return "localhost"
	}
	if i := strings.LastIndex(host, ":"); i != -1 {
		return host[:i]
	}
	return host
}
