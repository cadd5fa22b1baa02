package metadata

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nativegate/gateway/internal/domain"
)

// CollectionRepository implements domain.CollectionRepository.
type CollectionRepository struct {
	store *Store
}

func NewCollectionRepository(store *Store) domain.CollectionRepository {
	return &CollectionRepository{store: store}
}

func (r *CollectionRepository) Create(c *domain.Collection) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.store.withLock(func(db *sql.DB) error {
		_, err := db.Exec(`INSERT INTO collections (id, domain_id, name) VALUES (?, ?, ?)`, c.ID.String(), c.DomainID.String(), c.Name)
		return err
	})
}

func (r *CollectionRepository) GetByID(id uuid.UUID) (*domain.Collection, error) {
	var c *domain.Collection
	err := r.store.withLock(func(db *sql.DB) error {
		row := db.QueryRow(`SELECT id, domain_id, name, created_at, updated_at FROM collections WHERE id = ?`, id.String())
		var scanErr error
		c, scanErr = scanCollection(row)
		return scanErr
	})
	return c, err
}

func (r *CollectionRepository) Update(c *domain.Collection) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`UPDATE collections SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, c.Name, c.ID.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *CollectionRepository) Delete(id uuid.UUID) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`DELETE FROM collections WHERE id = ?`, id.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *CollectionRepository) ListForDomain(domainID uuid.UUID) ([]*domain.Collection, error) {
	var out []*domain.Collection
	err := r.store.withLock(func(db *sql.DB) error {
		rows, err := db.Query(`SELECT id, domain_id, name, created_at, updated_at FROM collections WHERE domain_id = ? ORDER BY created_at DESC`, domainID.String())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCollection(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func scanCollection(row rowScanner) (*domain.Collection, error) {
	var c domain.Collection
	var idStr, domainIDStr string
	err := row.Scan(&idStr, &domainIDStr, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	c.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse collection id: %w", err)
	}
	c.DomainID, err = uuid.Parse(domainIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse domain id: %w", err)
	}
	return &c, nil
}
