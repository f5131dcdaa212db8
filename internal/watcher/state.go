package watcher

import "errors"

// State is a watcher lifecycle state.
type State int32

const (
	Created State = iota
	Registered
	Watching
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Registered:
		return "registered"
	case Watching:
		return "watching"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrNotRegistered is returned when enabling without a bound handler.
	ErrNotRegistered = errors.New("watcher: not registered")
	// ErrAlreadyRegistered is returned when a second handler is registered.
	ErrAlreadyRegistered = errors.New("watcher: already registered")
	// ErrAlreadyWatching is returned when enabling a watching watcher.
	ErrAlreadyWatching = errors.New("watcher: already watching")
	// ErrStopped is returned for any transition out of Stopped.
	ErrStopped = errors.New("watcher: stopped")
	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("watcher: nil handler")
	// ErrInvalid is returned by New for a zero query or nil source.
	ErrInvalid = errors.New("watcher: invalid construction")
)
