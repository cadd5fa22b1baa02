package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nativegate/gateway/internal/compiler"
	"github.com/nativegate/gateway/internal/domain"
	"github.com/nativegate/gateway/internal/registry"
)

const defaultDrainDeadline = 30 * time.Second

// EndpointHandler exposes endpoint CRUD plus the code/compile/start/stop
// lifecycle actions (§3, §4.1, §4.2).
type EndpointHandler struct {
	endpoints domain.EndpointRepository
	pipeline  *compiler.Pipeline
	registry  *registry.Registry
	logger    *zap.Logger
	validator *validator.Validate
}

func NewEndpointHandler(
	endpoints domain.EndpointRepository,
	pipeline *compiler.Pipeline,
	reg *registry.Registry,
	logger *zap.Logger,
) *EndpointHandler {
	return &EndpointHandler{
		endpoints: endpoints,
		pipeline:  pipeline,
		registry:  reg,
		logger:    logger,
		validator: validator.New(),
	}
}

func (h *EndpointHandler) RegisterRoutes(r chi.Router) {
	r.Route("/endpoints", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
		r.Put("/{id}/code", h.SetCode)
		r.Post("/{id}/compile", h.Compile)
		r.Post("/{id}/start", h.Start)
		r.Post("/{id}/stop", h.Stop)
	})
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEndpointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	conflict, err := h.endpoints.ConflictsWithExisting(req.Host, req.Method, req.PathPattern, nil)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if conflict {
		writeConflict(w, errors.New("path pattern overlaps an existing endpoint for this host and method"))
		return
	}

	ep := &domain.Endpoint{
		Name:         req.Name,
		Host:         req.Host,
		PathPattern:  req.PathPattern,
		Method:       req.Method,
		CollectionID: req.CollectionID,
		Dependencies: req.Dependencies,
	}
	if err := h.endpoints.Create(ep); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, ep, "endpoint created")
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, ep, "")
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	h.registry.Unload(r.Context(), id)
	if err := h.endpoints.Delete(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "endpoint deleted")
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := h.endpoints.List(limit, offset)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, list, "")
}

// SetCode replaces an endpoint's source and resets Compiled to false, per
// §3's invariant that any source mutation invalidates the installed
// artifact until the next compile.
func (h *EndpointHandler) SetCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	var req domain.UpdateSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.endpoints.SetSource(id, req.Source, req.Dependencies); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "source updated")
}

// Compile runs the materialize/build/install pipeline against the
// endpoint's current source and marks it compiled on success.
func (h *EndpointHandler) Compile(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if ep.Source == "" {
		writeValidationError(w, errors.New("endpoint has no source to compile"))
		return
	}

	if _, err := h.pipeline.Compile(r.Context(), ep); err != nil {
		if errors.Is(err, domain.ErrCompileFailed) {
			writeErr(w, http.StatusUnprocessableEntity, "compile_failed", err)
			return
		}
		writeInternalError(w, err)
		return
	}
	if err := h.endpoints.SetCompiled(ep.ID, true); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "endpoint compiled")
}

// Start installs the compiled artifact into the registry and enables the
// endpoint for routing. SwapGraceful handles both the first-load case (no
// prior version, installs immediately) and the redeploy case (drains the
// previously active version per §4.1) uniformly.
func (h *EndpointHandler) Start(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !ep.Compiled {
		writeErr(w, http.StatusConflict, "not_compiled", domain.ErrNotCompiled)
		return
	}

	if _, err := h.registry.SwapGraceful(r.Context(), ep.ID, defaultDrainDeadline); err != nil {
		if errors.Is(err, domain.ErrArtifactMissing) {
			writeErr(w, http.StatusConflict, "artifact_missing", err)
			return
		}
		writeInternalError(w, err)
		return
	}

	if err := h.endpoints.SetEnabled(ep.ID, true); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "endpoint started")
}

// Stop drains and unloads the handler and disables routing for this
// endpoint.
func (h *EndpointHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	h.registry.Unload(r.Context(), id)
	if err := h.endpoints.SetEnabled(id, false); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "endpoint stopped")
}

func (h *EndpointHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.Endpoint, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return nil, false
	}
	ep, err := h.endpoints.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return nil, false
		}
		writeInternalError(w, err)
		return nil, false
	}
	return ep, true
}
