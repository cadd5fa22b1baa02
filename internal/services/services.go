// Package services implements the Service Actor Runtime (§4.3): one
// long-lived task per active service, multiplexing handler commands onto
// the task's owned connection over a bounded channel with one-shot replies.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nativegate/gateway/internal/domain"
)

// CommandCapacity is the suggested bounded-channel capacity from §4.3
// ("tens to low hundreds").
const CommandCapacity = 64

// Row is a generic database row: column order plus a name→value mapping.
type Row struct {
	Columns []string
	Values  map[string]any
}

// Param is a tagged variant over the value kinds a database command accepts.
// Exactly one field is set.
type Param struct {
	Null bool
	Int  *int64
	Real *float64
	Text *string
	Blob []byte
}

// ObjectInfo describes one object-store entry.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
	Metadata     map[string]string
}

// Document is a generic document for the Document taxonomy (mongodb), BSON
// encoded internally by the task and JSON at the ABI boundary.
type Document = map[string]any

// Actor runs arbitrary closures one at a time on a single owning goroutine
// fed through a bounded channel, giving §4.3's "commands processed in
// channel-arrival order" and §5's "command channels are bounded; when full,
// senders await" to any task kind whose operation surface is too varied for
// sqldb's fixed command-kind enum (cmdQuery/cmdExecute/cmdHealth/...) to
// generalize cleanly. cache, objectstore, document and mail tasks each own
// one instead of hand-rolling their own run loop.
type Actor struct {
	cmds chan func()
	stop chan chan struct{}
}

// NewActor starts the owning goroutine and returns the handle to it.
func NewActor() *Actor {
	a := &Actor{cmds: make(chan func(), CommandCapacity), stop: make(chan chan struct{})}
	go a.run()
	return a
}

func (a *Actor) run() {
	for {
		select {
		case fn := <-a.cmds:
			fn()
		case done := <-a.stop:
			close(done)
			return
		}
	}
}

// Do submits fn and blocks until the owning goroutine has run it, or ctx is
// done first. A timed-out Do may still have fn run later on the owning
// goroutine; callers must not rely on fn's side effects being visible to
// them after a timeout, only that they happened in arrival order relative
// to other commands.
func (a *Actor) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case a.cmds <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
	}
}

// Stop halts the owning goroutine. Call after a final Do (typically the
// backend's own shutdown) has completed; like sqldb's cmdShutdown, any Do
// submitted afterward blocks until its ctx expires since nothing drains
// cmds any longer.
func (a *Actor) Stop() {
	done := make(chan struct{})
	a.stop <- done
	<-done
}

// Task is implemented by every per-kind task handle (sqldb.Handle,
// cache.Handle, objectstore.Handle, document.Handle, mail.Handle). It is the
// minimum surface the Runtime needs to manage lifecycle generically.
type Task interface {
	Kind() domain.ServiceKind
	Health(timeout time.Duration) bool
	Shutdown() error
}

// Factory constructs a Task from a service's opaque JSON config. Registered
// per kind by the owning sub-package's init-time registration, avoiding an
// import cycle between services and sqldb/cache/objectstore/document/mail.
type Factory func(config json.RawMessage) (Task, error)

var factories = make(map[domain.ServiceKind]Factory)

// Register associates a kind with its task constructor. Called from each
// sub-package's init().
func Register(kind domain.ServiceKind, f Factory) {
	factories[kind] = f
}

// Runtime owns every currently-active service task, keyed by service id.
// Only one active instance per service id (§3).
type Runtime struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]Task
}

func NewRuntime() *Runtime {
	return &Runtime{tasks: make(map[uuid.UUID]Task)}
}

// Activate spawns the task for svc and publishes its handle. Returns
// InvalidConfig if no factory is registered for the kind or construction
// fails.
func (r *Runtime) Activate(svc *domain.Service) error {
	factory, ok := factories[svc.Kind]
	if !ok {
		return fmt.Errorf("%w: no task implementation for kind %q", domain.ErrInvalidConfig, svc.Kind)
	}

	task, err := factory(svc.Config)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	r.mu.Lock()
	if existing, ok := r.tasks[svc.ID]; ok {
		_ = existing.Shutdown()
	}
	r.tasks[svc.ID] = task
	r.mu.Unlock()
	return nil
}

// Deactivate sends the shutdown command and retracts the handle.
func (r *Runtime) Deactivate(id uuid.UUID) error {
	r.mu.Lock()
	task, ok := r.tasks[id]
	if ok {
		delete(r.tasks, id)
	}
	r.mu.Unlock()

	if !ok {
		return domain.ErrServiceNotConfigured
	}
	return task.Shutdown()
}

// Handle returns the currently active task for id, if any.
func (r *Runtime) Handle(id uuid.UUID) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Bundle is the cheap, clonable per-request view over the service tasks an
// endpoint has bound, keyed by the symbolic alias a handler uses (§3's
// "Service Handle"/"Services bundle"). It is built fresh per request from
// the endpoint's alias bindings and the runtime's currently active tasks.
type Bundle struct {
	byAlias map[string]Task
}

// NewBundle resolves each alias binding against runtime's active tasks.
// A binding whose service is not currently active is silently omitted —
// require_<kind>(alias) will then report NotConfigured, matching §4.3's
// "no command is ever sent to a service whose task has exited".
func NewBundle(bindings []*domain.EndpointServiceAlias, runtime *Runtime) *Bundle {
	b := &Bundle{byAlias: make(map[string]Task, len(bindings))}
	for _, binding := range bindings {
		if task, ok := runtime.Handle(binding.ServiceID); ok {
			b.byAlias[binding.Alias] = task
		}
	}
	return b
}

// Require returns the task bound under alias, typed-asserted to T, or
// NotConfigured if absent or of the wrong kind.
func Require[T Task](b *Bundle, alias string) (T, error) {
	var zero T
	t, ok := b.byAlias[alias]
	if !ok {
		return zero, fmt.Errorf("%w: alias %q not bound", domain.ErrServiceNotConfigured, alias)
	}
	typed, ok := t.(T)
	if !ok {
		return zero, fmt.Errorf("%w: alias %q is not the requested kind", domain.ErrServiceNotConfigured, alias)
	}
	return typed, nil
}

// Try is Require without the error: ok is false for any reason Require
// would have failed.
func Try[T Task](b *Bundle, alias string) (T, bool) {
	t, err := Require[T](b, alias)
	return t, err == nil
}
