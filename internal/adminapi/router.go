package adminapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteRegistrar is implemented by every admin sub-handler.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// NewRouter builds the full admin HTTP surface, grounded on
// cmd/server/main.go's chi.NewRouter()+middleware chain.
func NewRouter(handlers ...RouteRegistrar) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	for _, h := range handlers {
		h.RegisterRoutes(r)
	}
	return r
}
