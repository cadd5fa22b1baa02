package registry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/nativegate/gateway/internal/domain"
)

// entryFunctionName is the exported WASM function every compiled handler
// module carries, the go:wasmexport substitute for the native "handler_entry"
// symbol (§2).
const entryFunctionName = "handler_entry"

// LoadedHandler is an in-memory record owning one instantiated WASM module
// (§3's "Loaded Handler"). The compiled module and the instantiated module
// are kept separate exactly as wazero models them, mirroring "library
// handle must outlive the function pointer".
type LoadedHandler struct {
	EndpointID uuid.UUID
	LoadedAt   time.Time

	compiled wazero.CompiledModule
	module   api.Module
	entry    api.Function

	refcount atomic.Int64
	draining atomic.Bool
}

// Refcount returns the current in-flight call count. Exposed for the
// background reaper and for admin introspection.
func (h *LoadedHandler) Refcount() int64 { return h.refcount.Load() }

// Draining reports whether this handler has been marked for drain.
func (h *LoadedHandler) Draining() bool { return h.draining.Load() }

// close releases the wazero module and compiled code, the WASM substitute
// for "unmap the shared library".
func (h *LoadedHandler) close(ctx context.Context) error {
	var errs []error
	if h.module != nil {
		if err := h.module.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if h.compiled != nil {
		if err := h.compiled.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close handler %s: %v", h.EndpointID, errs)
	}
	return nil
}

// loadModule compiles and instantiates the WASM artifact bytes wasmBytes
// under the runtime rt, resolving the handler_entry export. Each instantiation gets a
// unique module name since wazero requires distinct names for concurrently
// instantiated modules sharing one runtime.
func loadModule(ctx context.Context, rt wazero.Runtime, endpointID uuid.UUID, wasmBytes []byte) (*LoadedHandler, error) {
	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLoadFailed, err)
	}

	modCfg := wazero.NewModuleConfig().
		WithName(fmt.Sprintf("handler-%s-%d", endpointID, time.Now().UnixNano()))

	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("%w: %v", domain.ErrLoadFailed, err)
	}

	fn := mod.ExportedFunction(entryFunctionName)
	if fn == nil {
		_ = mod.Close(ctx)
		_ = compiled.Close(ctx)
		return nil, domain.ErrSymbolMissing
	}

	return &LoadedHandler{
		EndpointID: endpointID,
		LoadedAt:   time.Now(),
		compiled:   compiled,
		module:     mod,
		entry:      fn,
	}, nil
}

// newWASIRuntime builds a wazero runtime with the WASI preview1 host module
// instantiated, matching the deny-by-default posture of wasi_sandbox.go: no
// filesystem mounts, no network, and no stdio wired (module output is
// discarded).
func newWASIRuntime(ctx context.Context) (wazero.Runtime, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	return rt, nil
}
