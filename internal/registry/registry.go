// Package registry implements the Handler Registry (§4.1): load, hot-swap
// with graceful drain, unload, and guarded execute over per-endpoint
// compiled WASM handler modules.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/nativegate/gateway/internal/domain"
	"github.com/nativegate/gateway/internal/services"
	"github.com/nativegate/gateway/internal/workers"
)

// artifactFilename is the on-disk name the compiler installs to and the
// registry loads from, per §2's "libhandler_ prefix kept for continuity".
func artifactFilename(endpointID uuid.UUID) string {
	return fmt.Sprintf("libhandler_%s.wasm", sanitize(endpointID.String()))
}

func sanitize(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// DrainReport is returned by SwapGraceful (§4.1).
type DrainReport struct {
	Swapped         bool  `json:"swapped"`
	PendingAtSwap   int64 `json:"pending_at_swap"`
	DrainInProgress bool  `json:"drain_in_progress"`
}

// Registry owns the active handler set and the draining list.
type Registry struct {
	artifactsRoot string
	pool          *workers.Pool
	logger        *zap.Logger

	runtime wazero.Runtime

	mu     sync.RWMutex // guards active; hot path is read-only lookups
	active map[uuid.UUID]*LoadedHandler

	drainMu  sync.Mutex // guards draining, separate from active's lock per §4.1
	draining []*LoadedHandler

	pollInterval time.Duration
}

// New builds a Registry rooted at artifactsRoot, using pool for execute
// dispatch.
func New(ctx context.Context, artifactsRoot string, pool *workers.Pool, logger *zap.Logger) (*Registry, error) {
	rt, err := newWASIRuntime(ctx)
	if err != nil {
		return nil, err
	}
	if err := instantiateHostModule(ctx, rt); err != nil {
		return nil, fmt.Errorf("instantiate gateway host module: %w", err)
	}
	return &Registry{
		artifactsRoot: artifactsRoot,
		pool:          pool,
		logger:        logger,
		runtime:       rt,
		active:        make(map[uuid.UUID]*LoadedHandler),
		pollInterval:  100 * time.Millisecond,
	}, nil
}

// Close shuts down the wazero runtime, releasing every compiled module.
func (r *Registry) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// Load opens the expected artifact for endpointID, compiles and instantiates
// it, and installs it as the active handler for that id, replacing any prior
// handler without draining (§4.1 — use SwapGraceful for a drained swap).
func (r *Registry) Load(ctx context.Context, endpointID uuid.UUID) (*LoadedHandler, error) {
	path := filepath.Join(r.artifactsRoot, endpointID.String(), artifactFilename(endpointID))
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrArtifactMissing
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	h, err := loadModule(ctx, r.runtime, endpointID, wasmBytes)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prev := r.active[endpointID]
	r.active[endpointID] = h
	r.mu.Unlock()

	if prev != nil {
		// load() replaces without drain per §4.1; close the prior module
		// immediately since no guard protocol protects it once the map no
		// longer points at it and callers of Load (not SwapGraceful) accept
		// that tradeoff.
		_ = prev.close(ctx)
	}

	r.logger.Info("handler loaded", zap.String("endpoint_id", endpointID.String()))
	return h, nil
}

// Get returns the currently active handler for endpointID, if any.
func (r *Registry) Get(endpointID uuid.UUID) (*LoadedHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.active[endpointID]
	return h, ok
}

// SwapGraceful loads the new artifact, installs it atomically, and drains
// the previous version per §4.1's state machine.
func (r *Registry) SwapGraceful(ctx context.Context, endpointID uuid.UUID, drainDeadline time.Duration) (DrainReport, error) {
	path := filepath.Join(r.artifactsRoot, endpointID.String(), artifactFilename(endpointID))
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DrainReport{}, domain.ErrArtifactMissing
		}
		return DrainReport{}, fmt.Errorf("read artifact: %w", err)
	}

	newHandler, err := loadModule(ctx, r.runtime, endpointID, wasmBytes)
	if err != nil {
		return DrainReport{}, err
	}

	r.mu.Lock()
	old := r.active[endpointID]
	r.active[endpointID] = newHandler
	r.mu.Unlock()

	if old == nil {
		return DrainReport{Swapped: true}, nil
	}

	old.draining.Store(true)
	pending := old.Refcount()

	if pending == 0 {
		_ = old.close(ctx)
		r.logger.Info("handler swapped, no drain needed", zap.String("endpoint_id", endpointID.String()))
		return DrainReport{Swapped: true, PendingAtSwap: 0, DrainInProgress: false}, nil
	}

	r.drainMu.Lock()
	r.draining = append(r.draining, old)
	r.drainMu.Unlock()

	go r.reap(old, drainDeadline)

	r.logger.Info("handler swapped, draining previous version",
		zap.String("endpoint_id", endpointID.String()), zap.Int64("pending", pending))
	return DrainReport{Swapped: true, PendingAtSwap: pending, DrainInProgress: true}, nil
}

// reap polls old's refcount until it reaches zero or the deadline elapses,
// then closes it, implementing Draining → Drained → Unloaded.
func (r *Registry) reap(old *LoadedHandler, deadline time.Duration) {
	ctx := context.Background()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	deadlineAt := time.Now().Add(deadline)

	for {
		if old.Refcount() == 0 {
			r.finishDrain(ctx, old)
			return
		}
		if time.Now().After(deadlineAt) {
			r.logger.Warn("drain deadline elapsed, dropping handler regardless of refcount",
				zap.String("endpoint_id", old.EndpointID.String()), zap.Int64("pending", old.Refcount()))
			r.finishDrain(ctx, old)
			return
		}
		<-ticker.C
	}
}

func (r *Registry) finishDrain(ctx context.Context, old *LoadedHandler) {
	r.drainMu.Lock()
	for i, h := range r.draining {
		if h == old {
			r.draining = append(r.draining[:i], r.draining[i+1:]...)
			break
		}
	}
	r.drainMu.Unlock()

	if err := old.close(ctx); err != nil {
		r.logger.Error("failed to close drained handler", zap.Error(err))
	}
}

// Unload immediately removes endpointID from the active map. Idempotent.
// Already-acquired guards keep the handler instantiated for the duration of
// their call; no new guard can be acquired once it leaves the map.
func (r *Registry) Unload(ctx context.Context, endpointID uuid.UUID) {
	r.mu.Lock()
	h, ok := r.active[endpointID]
	if ok {
		delete(r.active, endpointID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	h.draining.Store(true)
	go func() {
		for h.Refcount() > 0 {
			time.Sleep(r.pollInterval)
		}
		r.finishDrain(context.Background(), h)
	}()
}

// Execute looks up the handler, acquires a request guard, and invokes the
// entry function on the shared worker pool, racing it against timeout
// (§4.1, §5).
func (r *Registry) Execute(ctx context.Context, endpointID uuid.UUID, req domain.Request, bundle *services.Bundle, timeout time.Duration) (*domain.Response, error) {
	h, ok := r.Get(endpointID)
	if !ok {
		return nil, domain.ErrNotCompiled
	}

	guard, ok := Acquire(h)
	if !ok {
		return nil, domain.ErrDraining
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entryCtx := WithBundle(context.Background(), bundle)
	// guard.Release runs inside the submitted closure, not via defer here:
	// on timeout, Submit returns while callEntry is still running against
	// h.module in the background (§5), so releasing on Execute's own return
	// would let a concurrent SwapGraceful see refcount 0 and Close the
	// module out from under that still-running call (§8).
	result, err := r.pool.Submit(callCtx, func() (any, error) {
		defer guard.Release()
		return callEntry(entryCtx, h, req)
	})
	if err != nil {
		if callCtx.Err() != nil {
			return nil, domain.ErrTimeout
		}
		return nil, err
	}

	resp, ok := result.(*domain.Response)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type", domain.ErrHandlerPanicked)
	}
	return resp, nil
}

// callEntry marshals req to JSON, writes it into the guest's linear memory
// via its exported allocator, invokes handler_entry, and reads back the
// JSON response. Panics inside the call (a trapped WASM instruction) are
// recovered and reported as HandlerPanicked per §4.1's failure semantics —
// the module is not closed on panic, matching "not unloaded on panic".
func callEntry(ctx context.Context, h *LoadedHandler, req domain.Request) (resp *domain.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", domain.ErrHandlerPanicked, rec)
		}
	}()

	reqJSON, marshalErr := json.Marshal(req)
	if marshalErr != nil {
		return nil, fmt.Errorf("marshal request: %w", marshalErr)
	}

	allocate := h.module.ExportedFunction("allocate")
	if allocate == nil {
		return nil, fmt.Errorf("%w: module has no allocate export", domain.ErrSymbolMissing)
	}

	allocResult, err := allocate.Call(ctx, uint64(len(reqJSON)))
	if err != nil {
		return nil, fmt.Errorf("allocate request buffer: %w", err)
	}
	reqPtr := uint32(allocResult[0])

	if !h.module.Memory().Write(reqPtr, reqJSON) {
		return nil, fmt.Errorf("write request into guest memory out of bounds")
	}

	results, err := h.entry.Call(ctx, uint64(reqPtr), uint64(len(reqJSON)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrHandlerPanicked, err)
	}
	if len(results) != 2 {
		return nil, fmt.Errorf("%w: handler_entry returned %d results, want 2", domain.ErrLoadFailed, len(results))
	}

	respPtr, respLen := uint32(results[0]), uint32(results[1])
	respBytes, ok := h.module.Memory().Read(respPtr, respLen)
	if !ok {
		return nil, fmt.Errorf("read response from guest memory out of bounds")
	}

	var out domain.Response
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &out, nil
}
