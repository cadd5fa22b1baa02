// Package sqldb implements the Database command taxonomy (§4.3) for the
// sqlite, mysql and postgres service kinds, one task per active service
// owning a single *sql.DB.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Pure-Go SQLite driver for the metadata store is modernc.org/sqlite;
	// a handler's own declared sqlite service uses the cgo mattn driver
	// instead, matching the teacher's pgx-for-postgres-but-lib/pq-for-
	// migrate split of "two drivers, two jobs".
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nativegate/gateway/internal/domain"
	"github.com/nativegate/gateway/internal/services"
)

func init() {
	services.Register(domain.ServiceKindSQLite, newTask(domain.ServiceKindSQLite))
	services.Register(domain.ServiceKindMySQL, newTask(domain.ServiceKindMySQL))
	services.Register(domain.ServiceKindPostgres, newTask(domain.ServiceKindPostgres))
}

// Config is the opaque JSON shape for a Database service (§3: "opaque JSON
// configuration whose schema depends on kind").
type Config struct {
	DSN             string `json:"dsn"`
	MaxOpenConns    int    `json:"max_open_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_seconds"`
}

type command struct {
	kind   commandKind
	sqlStr string
	params []services.Param
	reply  chan result
}

type commandKind int

const (
	cmdQuery commandKind = iota
	cmdQueryOne
	cmdExecute
	cmdHealth
	cmdShutdown
)

type result struct {
	rows     []services.Row
	row      *services.Row
	affected int64
	healthy  bool
	err      error
}

// Handle is the clonable reference a request context holds; cloning copies
// only the channel sender (§3's "cheap, clonable").
type Handle struct {
	kind domain.ServiceKind
	cmds chan command
}

func newTask(kind domain.ServiceKind) services.Factory {
	return func(raw json.RawMessage) (services.Task, error) {
		var cfg Config
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
		}
		if cfg.DSN == "" {
			return nil, fmt.Errorf("%w: dsn is required", domain.ErrInvalidConfig)
		}

		db, err := sql.Open(driverName(kind), cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
		}
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
		}

		h := &Handle{kind: kind, cmds: make(chan command, services.CommandCapacity)}
		go run(db, h.cmds)
		return h, nil
	}
}

func driverName(kind domain.ServiceKind) string {
	switch kind {
	case domain.ServiceKindSQLite:
		return "sqlite3"
	case domain.ServiceKindMySQL:
		return "mysql"
	case domain.ServiceKindPostgres:
		return "pgx"
	default:
		return ""
	}
}

// run is the task loop: it owns db exclusively and serializes every command
// against it, exiting on cmdShutdown (§4.3). cmds is never closed, so the
// loop does not end when every Handle referencing it has been dropped.
func run(db *sql.DB, cmds chan command) {
	defer db.Close()
	for cmd := range cmds {
		switch cmd.kind {
		case cmdQuery:
			rows, err := execQuery(db, cmd.sqlStr, cmd.params)
			cmd.reply <- result{rows: rows, err: err}
		case cmdQueryOne:
			rows, err := execQuery(db, cmd.sqlStr, cmd.params)
			var row *services.Row
			if err == nil && len(rows) > 0 {
				row = &rows[0]
			}
			cmd.reply <- result{row: row, err: err}
		case cmdExecute:
			n, err := execExecute(db, cmd.sqlStr, cmd.params)
			cmd.reply <- result{affected: n, err: err}
		case cmdHealth:
			cmd.reply <- result{healthy: db.Ping() == nil}
		case cmdShutdown:
			cmd.reply <- result{}
			return
		}
	}
}

func paramValues(params []services.Param) []any {
	out := make([]any, len(params))
	for i, p := range params {
		switch {
		case p.Null:
			out[i] = nil
		case p.Int != nil:
			out[i] = *p.Int
		case p.Real != nil:
			out[i] = *p.Real
		case p.Text != nil:
			out[i] = *p.Text
		case p.Blob != nil:
			out[i] = p.Blob
		default:
			out[i] = nil
		}
	}
	return out
}

func execQuery(db *sql.DB, query string, params []services.Param) ([]services.Row, error) {
	rows, err := db.Query(query, paramValues(params)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}

	var out []services.Row
	for rows.Next() {
		scanTargets := make([]any, len(cols))
		scanValues := make([]any, len(cols))
		for i := range scanTargets {
			scanTargets[i] = &scanValues[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
		}
		values := make(map[string]any, len(cols))
		for i, c := range cols {
			values[c] = scanValues[i]
		}
		out = append(out, services.Row{Columns: cols, Values: values})
	}
	return out, rows.Err()
}

func execExecute(db *sql.DB, query string, params []services.Param) (int64, error) {
	res, err := db.Exec(query, paramValues(params)...)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}
	return res.RowsAffected()
}

func (h *Handle) Kind() domain.ServiceKind { return h.kind }

func (h *Handle) send(ctx context.Context, cmd command) (result, error) {
	select {
	case h.cmds <- cmd:
	case <-ctx.Done():
		return result{}, fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
	}
	select {
	case r := <-cmd.reply:
		return r, r.err
	case <-ctx.Done():
		return result{}, fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
	}
}

func (h *Handle) Query(ctx context.Context, sqlStr string, params []services.Param) ([]services.Row, error) {
	r, err := h.send(ctx, command{kind: cmdQuery, sqlStr: sqlStr, params: params, reply: make(chan result, 1)})
	return r.rows, err
}

func (h *Handle) QueryOne(ctx context.Context, sqlStr string, params []services.Param) (*services.Row, error) {
	r, err := h.send(ctx, command{kind: cmdQueryOne, sqlStr: sqlStr, params: params, reply: make(chan result, 1)})
	return r.row, err
}

func (h *Handle) Execute(ctx context.Context, sqlStr string, params []services.Param) (int64, error) {
	r, err := h.send(ctx, command{kind: cmdExecute, sqlStr: sqlStr, params: params, reply: make(chan result, 1)})
	return r.affected, err
}

func (h *Handle) Health(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	r, err := h.send(ctx, command{kind: cmdHealth, reply: make(chan result, 1)})
	return err == nil && r.healthy
}

func (h *Handle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := h.send(ctx, command{kind: cmdShutdown, reply: make(chan result, 1)})
	return err
}
