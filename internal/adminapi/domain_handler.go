package adminapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nativegate/gateway/internal/domain"
)

// DomainHandler exposes CRUD over domains, grounded on
// internal/delivery/http/user_handler.go's RegisterRoutes(chi.Router) shape.
type DomainHandler struct {
	domains   domain.DomainRepository
	validator *validator.Validate
}

func NewDomainHandler(domains domain.DomainRepository) *DomainHandler {
	return &DomainHandler{domains: domains, validator: validator.New()}
}

func (h *DomainHandler) RegisterRoutes(r chi.Router) {
	r.Route("/domains", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *DomainHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDomainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	d := &domain.Domain{Name: req.Name, Host: req.Host}
	if err := h.domains.Create(d); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, d, "domain created")
}

func (h *DomainHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	d, err := h.domains.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, d, "")
}

func (h *DomainHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	existing, err := h.domains.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}

	var req domain.CreateDomainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	existing.Name = req.Name
	existing.Host = req.Host
	if err := h.domains.Update(existing); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, existing, "domain updated")
}

func (h *DomainHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.domains.Delete(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "domain deleted")
}

func (h *DomainHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := h.domains.List(limit, offset)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, list, "")
}

// pagination mirrors the teacher's page/limit query-parameter parsing
// (internal/delivery/http/user_handler.go's ListUsers), translated to a
// limit/offset pair the repositories take directly.
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	page := 1
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	return limit, (page - 1) * limit
}
