package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ServiceKind identifies the backend a Service connects to. The set is
// fixed by §3; the service actor runtime (internal/services) registers a
// task factory for every kind, with one task type serving several related
// kinds (sqldb, cache, objectstore).
type ServiceKind string

const (
	ServiceKindSQLite    ServiceKind = "sqlite"
	ServiceKindMySQL     ServiceKind = "mysql"
	ServiceKindPostgres  ServiceKind = "postgres"
	ServiceKindRedis     ServiceKind = "redis"
	ServiceKindMemcached ServiceKind = "memcached"
	ServiceKindInMemory  ServiceKind = "in-memory"
	ServiceKindMinio     ServiceKind = "minio"
	ServiceKindS3        ServiceKind = "s3"
	ServiceKindSMTP      ServiceKind = "smtp"
	ServiceKindMongoDB   ServiceKind = "mongodb"
)

// ValidServiceKinds lists the kinds accepted by admin writes.
var ValidServiceKinds = []ServiceKind{
	ServiceKindSQLite, ServiceKindMySQL, ServiceKindPostgres,
	ServiceKindRedis, ServiceKindMemcached, ServiceKindInMemory,
	ServiceKindMinio, ServiceKindS3,
	ServiceKindSMTP, ServiceKindMongoDB,
}

// IsValid reports whether k is one of the fixed service kinds.
func (k ServiceKind) IsValid() bool {
	for _, v := range ValidServiceKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Service is a named backend connection. Config is opaque JSON whose schema
// depends on Kind (see internal/services for the per-kind config structs).
type Service struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Name      string          `json:"name" db:"name" validate:"required,min=1,max=200"`
	Kind      ServiceKind     `json:"kind" db:"kind"`
	Config    json.RawMessage `json:"config" db:"config"`
	Enabled   bool            `json:"enabled" db:"enabled"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// CreateServiceRequest is the admin DTO for registering a service. Services
// are created inactive; activating one spawns the owning task (§3).
type CreateServiceRequest struct {
	Name   string          `json:"name" validate:"required,min=1,max=200"`
	Kind   ServiceKind     `json:"kind" validate:"required"`
	Config json.RawMessage `json:"config" validate:"required"`
}

// UpdateServiceRequest patches a service's name or config. Kind is
// immutable once created — changing the backend type is a delete+recreate.
type UpdateServiceRequest struct {
	Name   *string         `json:"name,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// ServiceRepository is the metadata-store-backed persistence boundary for
// services.
type ServiceRepository interface {
	Create(s *Service) error
	GetByID(id uuid.UUID) (*Service, error)
	GetByName(name string) (*Service, error)
	Update(s *Service) error
	Delete(id uuid.UUID) error
	List(limit, offset int) ([]*Service, error)
	Count() (int, error)
	SetEnabled(id uuid.UUID, enabled bool) error
	ListEnabled() ([]*Service, error)
}

// EndpointServiceAlias binds an endpoint to a service under a symbolic
// alias a handler uses to look the service up (§4.5's join table).
type EndpointServiceAlias struct {
	EndpointID uuid.UUID `json:"endpoint_id" db:"endpoint_id"`
	ServiceID  uuid.UUID `json:"service_id" db:"service_id"`
	Alias      string    `json:"alias" db:"alias" validate:"required"`
}

// EndpointServiceRepository manages the endpoint<->service alias bindings.
// Deleting an endpoint cascades through this table (§4.5).
type EndpointServiceRepository interface {
	Bind(binding *EndpointServiceAlias) error
	Unbind(endpointID uuid.UUID, alias string) error
	ListForEndpoint(endpointID uuid.UUID) ([]*EndpointServiceAlias, error)
	DeleteForEndpoint(endpointID uuid.UUID) error
}
