package domain

import (
	"time"

	"github.com/google/uuid"
)

// Domain groups endpoints under one host for admin filtering. Request
// routing keys off the endpoint's own host+path+method, never off this
// grouping, per §3.
type Domain struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name" validate:"required,min=1,max=200"`
	Host      string    `json:"host" db:"host" validate:"required"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateDomainRequest is the admin DTO for registering a domain.
type CreateDomainRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
	Host string `json:"host" validate:"required"`
}

// DomainRepository is the metadata-store-backed persistence boundary for
// domains.
type DomainRepository interface {
	Create(d *Domain) error
	GetByID(id uuid.UUID) (*Domain, error)
	Update(d *Domain) error
	Delete(id uuid.UUID) error
	List(limit, offset int) ([]*Domain, error)
}

// Collection groups endpoints within a domain for admin organization only.
type Collection struct {
	ID        uuid.UUID `json:"id" db:"id"`
	DomainID  uuid.UUID `json:"domain_id" db:"domain_id"`
	Name      string    `json:"name" db:"name" validate:"required,min=1,max=200"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateCollectionRequest is the admin DTO for registering a collection.
type CreateCollectionRequest struct {
	DomainID uuid.UUID `json:"domain_id" validate:"required"`
	Name     string    `json:"name" validate:"required,min=1,max=200"`
}

// CollectionRepository is the metadata-store-backed persistence boundary
// for collections.
type CollectionRepository interface {
	Create(c *Collection) error
	GetByID(id uuid.UUID) (*Collection, error)
	Update(c *Collection) error
	Delete(id uuid.UUID) error
	ListForDomain(domainID uuid.UUID) ([]*Collection, error)
}
