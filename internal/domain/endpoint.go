package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Dependency describes one entry of an endpoint's declared dependency
// manifest (§3). A bare version string is the common case; the structured
// form lets a handler opt into features or mark a dependency optional.
type Dependency struct {
	Version         string   `json:"version"`
	Features        []string `json:"features,omitempty"`
	Optional        bool     `json:"optional,omitempty"`
	DefaultFeatures *bool    `json:"default-features,omitempty"`
}

// DependencyManifest maps a dependency name to its declaration. It
// unmarshals a bare JSON string the same way it unmarshals a structured
// object, mirroring the "version string or object" shape from §3.
type DependencyManifest map[string]Dependency

// UnmarshalJSON accepts either `"name": "1.2.3"` or
// `"name": {"version": "1.2.3", "features": [...]}` per dependency entry.
func (m *DependencyManifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(DependencyManifest, len(raw))
	for name, v := range raw {
		var version string
		if err := json.Unmarshal(v, &version); err == nil {
			out[name] = Dependency{Version: version}
			continue
		}
		var dep Dependency
		if err := json.Unmarshal(v, &dep); err != nil {
			return err
		}
		out[name] = dep
	}
	*m = out
	return nil
}

// Endpoint is the unit of routable behavior: a (host, method, path pattern)
// tuple bound to handler source and, once compiled, a loadable artifact.
type Endpoint struct {
	ID           uuid.UUID          `json:"id" db:"id"`
	Name         string             `json:"name" db:"name" validate:"required,min=1,max=200"`
	Host         string             `json:"host" db:"host" validate:"required"`
	PathPattern  string             `json:"path_pattern" db:"path_pattern" validate:"required"`
	Method       string             `json:"method" db:"method" validate:"required"`
	Source       string             `json:"source,omitempty" db:"source"`
	Dependencies DependencyManifest `json:"dependencies,omitempty" db:"dependencies"`
	Compiled     bool               `json:"compiled" db:"compiled"`
	Enabled      bool               `json:"enabled" db:"enabled"`
	CollectionID *uuid.UUID         `json:"collection_id,omitempty" db:"collection_id"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}

// CreateEndpointRequest is the admin DTO for registering a new endpoint. It
// is created disabled and uncompiled per the lifecycle in §3.
type CreateEndpointRequest struct {
	Name         string             `json:"name" validate:"required,min=1,max=200"`
	Host         string             `json:"host" validate:"required"`
	PathPattern  string             `json:"path_pattern" validate:"required"`
	Method       string             `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	CollectionID *uuid.UUID         `json:"collection_id,omitempty"`
	Dependencies DependencyManifest `json:"dependencies,omitempty"`
}

// UpdateSourceRequest is the admin DTO for `PUT .../code`. Any source
// mutation resets Compiled to false per the invariant in §3.
type UpdateSourceRequest struct {
	Source       string             `json:"source" validate:"required"`
	Dependencies DependencyManifest `json:"dependencies,omitempty"`
}

// EndpointRepository is the metadata-store-backed persistence boundary for
// endpoints, including the (host, method, enabled) lookup the router uses.
type EndpointRepository interface {
	Create(e *Endpoint) error
	GetByID(id uuid.UUID) (*Endpoint, error)
	Update(e *Endpoint) error
	Delete(id uuid.UUID) error
	List(limit, offset int) ([]*Endpoint, error)
	Count() (int, error)
	SetSource(id uuid.UUID, source string, deps DependencyManifest) error
	SetCompiled(id uuid.UUID, compiled bool) error
	SetEnabled(id uuid.UUID, enabled bool) error
	FindRoutable(host, method string) ([]*Endpoint, error)
	ListCompiledEnabled() ([]*Endpoint, error)
	ConflictsWithExisting(host, method, pattern string, excludeID *uuid.UUID) (bool, error)
}
