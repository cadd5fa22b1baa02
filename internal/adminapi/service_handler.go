package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nativegate/gateway/internal/domain"
	"github.com/nativegate/gateway/internal/services"
)

// healthCheckTimeout bounds the synchronous POST .../test call.
const healthCheckTimeout = 5 * time.Second

// ServiceHandler exposes CRUD plus the activate/deactivate/test lifecycle
// actions over the Service Actor Runtime (§4.3).
type ServiceHandler struct {
	services    domain.ServiceRepository
	runtime     *services.Runtime
	validator   *validator.Validate
}

func NewServiceHandler(repo domain.ServiceRepository, runtime *services.Runtime) *ServiceHandler {
	return &ServiceHandler{services: repo, runtime: runtime, validator: validator.New()}
}

func (h *ServiceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/services", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/activate", h.Activate)
		r.Post("/{id}/deactivate", h.Deactivate)
		r.Post("/{id}/test", h.Test)
	})
}

func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}
	if !req.Kind.IsValid() {
		writeValidationError(w, errors.New("unknown service kind"))
		return
	}

	svc := &domain.Service{Name: req.Name, Kind: req.Kind, Config: req.Config}
	if err := h.services.Create(svc); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, svc, "service created")
}

func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	svc, err := h.services.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, svc, "")
}

func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	existing, err := h.services.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}

	var req domain.UpdateServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	if req.Name != nil {
		existing.Name = *req.Name
	}
	if len(req.Config) > 0 {
		existing.Config = req.Config
	}
	if err := h.services.Update(existing); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, existing, "service updated")
}

func (h *ServiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	_ = h.runtime.Deactivate(id)
	if err := h.services.Delete(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "service deleted")
}

func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := h.services.List(limit, offset)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, list, "")
}

// Activate spawns the backing task and flips the persisted enabled flag
// (§3's "services are created inactive; activating spawns the task").
func (h *ServiceHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	svc, err := h.services.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}

	if err := h.runtime.Activate(svc); err != nil {
		if errors.Is(err, domain.ErrInvalidConfig) {
			writeValidationError(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}
	if err := h.services.SetEnabled(id, true); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "service activated")
}

func (h *ServiceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.runtime.Deactivate(id); err != nil && !errors.Is(err, domain.ErrServiceNotConfigured) {
		writeInternalError(w, err)
		return
	}
	if err := h.services.SetEnabled(id, false); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "service deactivated")
}

// Test runs a synchronous health check against the currently active task.
func (h *ServiceHandler) Test(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	task, ok := h.runtime.Handle(id)
	if !ok {
		writeErr(w, http.StatusConflict, "not_active", domain.ErrServiceNotConfigured)
		return
	}
	healthy := task.Health(healthCheckTimeout)
	writeSuccess(w, http.StatusOK, map[string]bool{"healthy": healthy}, "")
}
