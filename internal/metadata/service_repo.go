package metadata

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nativegate/gateway/internal/domain"
)

// ServiceRepository implements domain.ServiceRepository.
type ServiceRepository struct {
	store *Store
}

func NewServiceRepository(store *Store) domain.ServiceRepository {
	return &ServiceRepository{store: store}
}

func (r *ServiceRepository) Create(s *domain.Service) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.store.withLock(func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT INTO services (id, name, kind, config, enabled)
			VALUES (?, ?, ?, ?, ?)
		`, s.ID.String(), s.Name, string(s.Kind), string(s.Config), s.Enabled)
		return err
	})
}

func (r *ServiceRepository) GetByID(id uuid.UUID) (*domain.Service, error) {
	var s *domain.Service
	err := r.store.withLock(func(db *sql.DB) error {
		row := db.QueryRow(`
			SELECT id, name, kind, config, enabled, created_at, updated_at FROM services WHERE id = ?
		`, id.String())
		var scanErr error
		s, scanErr = scanService(row)
		return scanErr
	})
	return s, err
}

func (r *ServiceRepository) GetByName(name string) (*domain.Service, error) {
	var s *domain.Service
	err := r.store.withLock(func(db *sql.DB) error {
		row := db.QueryRow(`
			SELECT id, name, kind, config, enabled, created_at, updated_at FROM services WHERE name = ?
		`, name)
		var scanErr error
		s, scanErr = scanService(row)
		return scanErr
	})
	return s, err
}

func (r *ServiceRepository) Update(s *domain.Service) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`
			UPDATE services SET name = ?, config = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, s.Name, string(s.Config), s.ID.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *ServiceRepository) Delete(id uuid.UUID) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`DELETE FROM services WHERE id = ?`, id.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *ServiceRepository) List(limit, offset int) ([]*domain.Service, error) {
	var out []*domain.Service
	err := r.store.withLock(func(db *sql.DB) error {
		rows, err := db.Query(`
			SELECT id, name, kind, config, enabled, created_at, updated_at FROM services
			ORDER BY created_at DESC LIMIT ? OFFSET ?
		`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanService(rows)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

func (r *ServiceRepository) Count() (int, error) {
	var count int
	err := r.store.withLock(func(db *sql.DB) error {
		return db.QueryRow(`SELECT COUNT(*) FROM services`).Scan(&count)
	})
	return count, err
}

func (r *ServiceRepository) SetEnabled(id uuid.UUID, enabled bool) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`UPDATE services SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, enabled, id.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *ServiceRepository) ListEnabled() ([]*domain.Service, error) {
	var out []*domain.Service
	err := r.store.withLock(func(db *sql.DB) error {
		rows, err := db.Query(`
			SELECT id, name, kind, config, enabled, created_at, updated_at FROM services WHERE enabled = 1
		`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanService(rows)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

func scanService(row rowScanner) (*domain.Service, error) {
	var s domain.Service
	var idStr, kindStr, configStr string

	err := row.Scan(&idStr, &s.Name, &kindStr, &configStr, &s.Enabled, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	s.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse service id: %w", err)
	}
	s.Kind = domain.ServiceKind(kindStr)
	s.Config = []byte(configStr)
	return &s, nil
}
