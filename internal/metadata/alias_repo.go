package metadata

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/nativegate/gateway/internal/domain"
)

// EndpointServiceRepository implements domain.EndpointServiceRepository over
// the endpoint_services join table.
type EndpointServiceRepository struct {
	store *Store
}

func NewEndpointServiceRepository(store *Store) domain.EndpointServiceRepository {
	return &EndpointServiceRepository{store: store}
}

func (r *EndpointServiceRepository) Bind(binding *domain.EndpointServiceAlias) error {
	return r.store.withLock(func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT INTO endpoint_services (endpoint_id, service_id, alias) VALUES (?, ?, ?)
			ON CONFLICT(endpoint_id, alias) DO UPDATE SET service_id = excluded.service_id
		`, binding.EndpointID.String(), binding.ServiceID.String(), binding.Alias)
		return err
	})
}

func (r *EndpointServiceRepository) Unbind(endpointID uuid.UUID, alias string) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`DELETE FROM endpoint_services WHERE endpoint_id = ? AND alias = ?`, endpointID.String(), alias)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *EndpointServiceRepository) ListForEndpoint(endpointID uuid.UUID) ([]*domain.EndpointServiceAlias, error) {
	var out []*domain.EndpointServiceAlias
	err := r.store.withLock(func(db *sql.DB) error {
		rows, err := db.Query(`SELECT endpoint_id, service_id, alias FROM endpoint_services WHERE endpoint_id = ?`, endpointID.String())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var a domain.EndpointServiceAlias
			var eidStr, sidStr string
			if err := rows.Scan(&eidStr, &sidStr, &a.Alias); err != nil {
				return err
			}
			a.EndpointID, err = uuid.Parse(eidStr)
			if err != nil {
				return err
			}
			a.ServiceID, err = uuid.Parse(sidStr)
			if err != nil {
				return err
			}
			out = append(out, &a)
		}
		return rows.Err()
	})
	return out, err
}

func (r *EndpointServiceRepository) DeleteForEndpoint(endpointID uuid.UUID) error {
	return r.store.withLock(func(db *sql.DB) error {
		_, err := db.Exec(`DELETE FROM endpoint_services WHERE endpoint_id = ?`, endpointID.String())
		return err
	})
}
