package metadata

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nativegate/gateway/internal/domain"
)

// EndpointRepository implements domain.EndpointRepository against a single
// SQLite connection, mirroring the flat query-per-method shape of the
// postgres repositories this package replaces.
type EndpointRepository struct {
	store *Store
}

func NewEndpointRepository(store *Store) domain.EndpointRepository {
	return &EndpointRepository{store: store}
}

func (r *EndpointRepository) Create(e *domain.Endpoint) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	deps, err := json.Marshal(e.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}

	return r.store.withLock(func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT INTO endpoints (id, name, host, path_pattern, method, source, dependencies, compiled, enabled, collection_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID.String(), e.Name, e.Host, e.PathPattern, e.Method, e.Source, string(deps), e.Compiled, e.Enabled, collectionIDValue(e.CollectionID))
		return err
	})
}

func (r *EndpointRepository) GetByID(id uuid.UUID) (*domain.Endpoint, error) {
	var e *domain.Endpoint
	err := r.store.withLock(func(db *sql.DB) error {
		row := db.QueryRow(`
			SELECT id, name, host, path_pattern, method, source, dependencies, compiled, enabled, collection_id, created_at, updated_at
			FROM endpoints WHERE id = ?
		`, id.String())
		var scanErr error
		e, scanErr = scanEndpoint(row)
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EndpointRepository) Update(e *domain.Endpoint) error {
	deps, err := json.Marshal(e.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`
			UPDATE endpoints
			SET name = ?, host = ?, path_pattern = ?, method = ?, source = ?, dependencies = ?,
			    compiled = ?, enabled = ?, collection_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, e.Name, e.Host, e.PathPattern, e.Method, e.Source, string(deps), e.Compiled, e.Enabled, collectionIDValue(e.CollectionID), e.ID.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *EndpointRepository) Delete(id uuid.UUID) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`DELETE FROM endpoints WHERE id = ?`, id.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *EndpointRepository) List(limit, offset int) ([]*domain.Endpoint, error) {
	var out []*domain.Endpoint
	err := r.store.withLock(func(db *sql.DB) error {
		rows, err := db.Query(`
			SELECT id, name, host, path_pattern, method, source, dependencies, compiled, enabled, collection_id, created_at, updated_at
			FROM endpoints ORDER BY created_at DESC LIMIT ? OFFSET ?
		`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEndpoint(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

func (r *EndpointRepository) Count() (int, error) {
	var count int
	err := r.store.withLock(func(db *sql.DB) error {
		return db.QueryRow(`SELECT COUNT(*) FROM endpoints`).Scan(&count)
	})
	return count, err
}

func (r *EndpointRepository) SetSource(id uuid.UUID, source string, deps domain.DependencyManifest) error {
	depsJSON, err := json.Marshal(deps)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`
			UPDATE endpoints SET source = ?, dependencies = ?, compiled = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, source, string(depsJSON), id.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *EndpointRepository) SetCompiled(id uuid.UUID, compiled bool) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`UPDATE endpoints SET compiled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, compiled, id.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

func (r *EndpointRepository) SetEnabled(id uuid.UUID, enabled bool) error {
	return r.store.withLock(func(db *sql.DB) error {
		res, err := db.Exec(`UPDATE endpoints SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, enabled, id.String())
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// FindRoutable returns the candidate endpoints for a (host, method) pair;
// pattern matching against the path happens in-process (pattern.go) since
// SQLite has no segment-aware matcher. Compiled state is deliberately not
// filtered here: an enabled-but-uncompiled endpoint must still be matched so
// the router can answer with a 503 instead of a 404 (§4.4 step 4).
func (r *EndpointRepository) FindRoutable(host, method string) ([]*domain.Endpoint, error) {
	var out []*domain.Endpoint
	err := r.store.withLock(func(db *sql.DB) error {
		rows, err := db.Query(`
			SELECT id, name, host, path_pattern, method, source, dependencies, compiled, enabled, collection_id, created_at, updated_at
			FROM endpoints WHERE host = ? AND method = ? AND enabled = 1
		`, host, method)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEndpoint(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

func (r *EndpointRepository) ListCompiledEnabled() ([]*domain.Endpoint, error) {
	var out []*domain.Endpoint
	err := r.store.withLock(func(db *sql.DB) error {
		rows, err := db.Query(`
			SELECT id, name, host, path_pattern, method, source, dependencies, compiled, enabled, collection_id, created_at, updated_at
			FROM endpoints WHERE compiled = 1 AND enabled = 1
		`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEndpoint(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

// ConflictsWithExisting implements the create-time overlap rejection decided
// for the "ambiguous pattern ordering" open question: two patterns with the
// same (host, method) conflict when patternsOverlap says some request path
// could match both (same segment count, and equal literals wherever neither
// side has a {param} segment), regardless of parameter names.
func (r *EndpointRepository) ConflictsWithExisting(host, method, pattern string, excludeID *uuid.UUID) (bool, error) {
	candidates, err := r.store.queryPatterns(host, method, excludeID)
	if err != nil {
		return false, err
	}
	for _, existing := range candidates {
		if patternsOverlap(pattern, existing) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) queryPatterns(host, method string, excludeID *uuid.UUID) ([]string, error) {
	var out []string
	err := s.withLock(func(db *sql.DB) error {
		var rows *sql.Rows
		var err error
		if excludeID != nil {
			rows, err = db.Query(`SELECT path_pattern FROM endpoints WHERE host = ? AND method = ? AND id != ?`, host, method, excludeID.String())
		} else {
			rows, err = db.Query(`SELECT path_pattern FROM endpoints WHERE host = ? AND method = ?`, host, method)
		}
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(row rowScanner) (*domain.Endpoint, error) {
	var e domain.Endpoint
	var idStr string
	var collectionID sql.NullString
	var depsJSON string

	err := row.Scan(&idStr, &e.Name, &e.Host, &e.PathPattern, &e.Method, &e.Source, &depsJSON,
		&e.Compiled, &e.Enabled, &collectionID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	e.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint id: %w", err)
	}
	if collectionID.Valid {
		cid, err := uuid.Parse(collectionID.String)
		if err != nil {
			return nil, fmt.Errorf("parse collection id: %w", err)
		}
		e.CollectionID = &cid
	}
	if depsJSON != "" {
		if err := json.Unmarshal([]byte(depsJSON), &e.Dependencies); err != nil {
			return nil, fmt.Errorf("unmarshal dependencies: %w", err)
		}
	}
	return &e, nil
}

func collectionIDValue(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
