package subscription

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Registry tracks live subscriptions by tag.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscription)}
}

// Add tracks s. Tags are unique within a registry.
func (r *Registry) Add(s *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[s.Tag()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTag, s.Tag())
	}
	r.subs[s.Tag()] = s
	return nil
}

func (r *Registry) Get(tag string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[tag]
	return s, ok
}

// Unregister closes the subscription with tag and forgets it.
func (r *Registry) Unregister(tag string) error {
	r.mu.Lock()
	s, ok := r.subs[tag]
	delete(r.subs, tag)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	return s.Close()
}

// List returns the tracked subscriptions ordered by tag.
func (r *Registry) List() []*Subscription {
	r.mu.RLock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Subscription) int { return strings.Compare(a.Tag(), b.Tag()) })
	return out
}

// Close closes and forgets every subscription.
func (r *Registry) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*Subscription)
	r.mu.Unlock()

	var result *multierror.Error
	for tag, s := range subs {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %q: %w", tag, err))
		}
	}
	return result.ErrorOrNil()
}
