package adminapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nativegate/gateway/internal/domain"
)

// CollectionHandler exposes CRUD over collections, which are admin-only
// organizational grouping and never consulted by the router (§3).
type CollectionHandler struct {
	collections domain.CollectionRepository
	validator   *validator.Validate
}

func NewCollectionHandler(collections domain.CollectionRepository) *CollectionHandler {
	return &CollectionHandler{collections: collections, validator: validator.New()}
}

func (h *CollectionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/collections", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
	r.Get("/domains/{domainID}/collections", h.ListForDomain)
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	c := &domain.Collection{DomainID: req.DomainID, Name: req.Name}
	if err := h.collections.Create(c); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, c, "collection created")
}

func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	c, err := h.collections.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, c, "")
}

func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	existing, err := h.collections.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}

	var req domain.CreateCollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}
	existing.Name = req.Name
	if req.DomainID != uuid.Nil {
		existing.DomainID = req.DomainID
	}
	if err := h.collections.Update(existing); err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, existing, "collection updated")
}

func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.collections.Delete(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "collection deleted")
}

func (h *CollectionHandler) ListForDomain(w http.ResponseWriter, r *http.Request) {
	domainID, err := uuid.Parse(chi.URLParam(r, "domainID"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	list, err := h.collections.ListForDomain(domainID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, list, "")
}
