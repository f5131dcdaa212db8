package eventlog

import (
	"context"
	"time"
)

// Changed returns a channel that is closed by the next successful Append.
// Capture it before reading to avoid missing an append that lands in between.
func (l *Log) Changed() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.notifyCh
}

// WaitForAppend blocks until either a new append occurs, timeout elapses or
// ctx is done. It returns true if woken by an append. A non-positive timeout
// waits only on the append and ctx.
func (l *Log) WaitForAppend(ctx context.Context, timeout time.Duration) bool {
	return waitOn(ctx, l.Changed(), timeout)
}

func waitOn(ctx context.Context, ch <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-ch:
			return true
		case <-ctx.Done():
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// WaitChanged is WaitForAppend for a channel captured earlier with Changed.
func WaitChanged(ctx context.Context, ch <-chan struct{}, timeout time.Duration) bool {
	return waitOn(ctx, ch, timeout)
}
