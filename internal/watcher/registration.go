package watcher

import "context"

// Registration is proof that a handler was bound to a watcher. It is the only
// way to enable delivery, so a watcher can never be enabled with nothing
// consuming its records.
type Registration struct {
	w *Watcher
}

// Watcher returns the registered watcher, nil for a zero Registration.
func (r *Registration) Watcher() *Watcher {
	if r == nil {
		return nil
	}
	return r.w
}

// Enable moves the watcher from Registered to Watching and starts delivery
// strictly after the last delivered (or start) token. Cancelling ctx ends
// delivery and returns the watcher to Registered.
func (r *Registration) Enable(ctx context.Context) error {
	if r == nil || r.w == nil {
		return ErrNotRegistered
	}
	return r.w.enable(ctx)
}

// Disable stops new deliveries, waits for the in-flight invocation to finish
// and returns the watcher to Registered. Disabling a registered watcher is a
// no-op.
func (r *Registration) Disable() error {
	if r == nil || r.w == nil {
		return ErrNotRegistered
	}
	return r.w.disable()
}
