package registry

// RequestGuard is the only mechanism permitted to prevent premature module
// unload (§4.1). Acquiring it atomically checks the drain flag and
// increments the refcount; on failure the count is left untouched. The
// guard holds a strong reference to the handler record so that even if the
// registry's active map stops pointing at it mid-call, the module stays
// instantiated until the guard is released.
type RequestGuard struct {
	handler *LoadedHandler
	held    bool
}

// Acquire attempts to pin h for the duration of one call. It fails with ok
// == false if h is already draining.
func Acquire(h *LoadedHandler) (*RequestGuard, bool) {
	if h.draining.Load() {
		return nil, false
	}
	h.refcount.Add(1)
	// Re-check: a swap_graceful racing this goroutine may have flipped
	// draining to true between the Load above and the Add. Losing this
	// race means we incremented a refcount the drain reaper is already
	// watching wind down to zero, so back it out and fail instead of
	// serving on a handler that is mid-drain.
	if h.draining.Load() {
		h.refcount.Add(-1)
		return nil, false
	}
	return &RequestGuard{handler: h, held: true}, true
}

// Release drops the pin. Safe to call once; a second call is a no-op.
func (g *RequestGuard) Release() {
	if g == nil || !g.held {
		return
	}
	g.held = false
	g.handler.refcount.Add(-1)
}
