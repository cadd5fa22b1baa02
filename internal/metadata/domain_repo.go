package metadata

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nativegate/gateway/internal/domain"
)

// DomainRepository implements domain.DomainRepository.
type DomainRepository struct {
	store *Store
}

func NewDomainRepository(store *Store) domain.DomainRepository {
	return &DomainRepository{store: store}
}

func (r *DomainRepository) Create(d *domain.Domain) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return r.store.withLock(func(db *sql.DB) error {
		_, err := db.Exec(`INSERT INTO domains (id, name, host) VALUES (?, ?, ?)`, d.ID.String(), d.Name, d.Host)
		return err
	})
}

func (r *DomainRepository) GetByID(id uuid.UUID) (*domain.Domain, error) {
	var d *domain.Domain
	err := r.store.withLock(func(db *sql.DB) error {
		row := db.QueryRow(`SELECT id, name, host, created_at, updated_at FROM domains WHERE id = ?`, id.String())
		var scanErr error
		d, scanErr = scanDomain(row)
		return scanErr
	})
	return d, err
}

func (r *DomainRepository) Update(d *domain.Domain) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`UPDATE domains SET name = ?, host = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, d.Name, d.Host, d.ID.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *DomainRepository) Delete(id uuid.UUID) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`DELETE FROM domains WHERE id = ?`, id.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *DomainRepository) List(limit, offset int) ([]*domain.Domain, error) {
	var out []*domain.Domain
	err := r.store.withLock(func(db *sql.DB) error {
		rows, err := db.Query(`SELECT id, name, host, created_at, updated_at FROM domains ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			d, err := scanDomain(rows)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	return out, err
}

func scanDomain(row rowScanner) (*domain.Domain, error) {
	var d domain.Domain
	var idStr string
	err := row.Scan(&idStr, &d.Name, &d.Host, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	d.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse domain id: %w", err)
	}
	return &d, nil
}
