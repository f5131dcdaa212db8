package source

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rzbill/flowatch/internal/query"
)

// ErrNoSource is returned when no source is registered for a query's mode.
var ErrNoSource = errors.New("source: no source for mode")

// Mux routes queries to the source registered for their addressing mode.
type Mux struct {
	mu     sync.RWMutex
	byMode map[query.Mode]Source
}

func NewMux() *Mux {
	return &Mux{byMode: make(map[query.Mode]Source)}
}

// Handle registers src for mode, replacing any previous registration.
func (m *Mux) Handle(mode query.Mode, src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byMode[mode] = src
}

// Route returns the source serving q.
func (m *Mux) Route(q query.Query) (Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.byMode[q.Mode()]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoSource, q.Mode())
	}
	return src, nil
}
