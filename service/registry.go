// Package service implements a registry of interchangeable backends with a
// preferred-then-fallback activation policy. Exactly one backend is active at a
// time, and a no-op fallback backend guarantees activation never comes up empty.
package service

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"github.com/subplay/subplay/log"
)

var (
	ErrAlreadyInitialized = errors.New("service is already initialized")
	ErrNotInitialized     = errors.New("service is not initialized")
	ErrNoBackend          = errors.New("no backend could be initialized")
	ErrNoFallback         = errors.New("no fallback backend registered")
)

var logger = log.For("service")

// Descriptor names one registered backend.
type Descriptor[B any] struct {
	Name     string
	Backend  B
	Fallback bool
}

// Hooks connect a Registry to the owner of the backends.
// Initialize and Finalize are invoked while the registry lock is held and must
// not call back into the registry.
type Hooks[B any] struct {
	Initialize func(name string, backend B) error
	Finalize   func(name string, backend B)

	// Initialized and Finalized observe activation changes.
	Initialized func(name string)
	Finalized   func(name string)
}

// Registry holds backends by name in registration order.
type Registry[B any] struct {
	mu          sync.Mutex
	hooks       Hooks[B]
	backends    []*Descriptor[B]
	fallback    *Descriptor[B]
	active      *Descriptor[B]
	closingDown atomic.Bool
}

// New creates an empty registry. A fallback must be set with SetFallback before Initialize.
func New[B any](hooks Hooks[B]) *Registry[B] {
	return &Registry[B]{hooks: hooks}
}

// Register adds a backend. Names are unique; registering a name twice panics.
func (r *Registry[B]) Register(name string, backend B) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lookup(name); ok {
		panic("duplicate backend name: " + name)
	}
	r.backends = append(r.backends, &Descriptor[B]{Name: name, Backend: backend})
}

// SetFallback installs the no-op backend that is tried after every other one.
// A registry holds exactly one fallback; setting a new one replaces the old.
func (r *Registry[B]) SetFallback(name string, backend B) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := lo.Find(r.backends, func(d *Descriptor[B]) bool { return d.Name == name }); ok {
		panic("duplicate backend name: " + name)
	}
	r.fallback = &Descriptor[B]{Name: name, Backend: backend, Fallback: true}
}

// Initialize activates the preferred backend, or the first other backend in
// registration order that initializes successfully, trying the fallback last.
// Failures of individual backends are logged and never returned.
func (r *Registry[B]) Initialize(preferred string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return ErrAlreadyInitialized
	}
	if r.fallback == nil {
		return ErrNoFallback
	}

	return r.activate(preferred)
}

// Reinitialize finalizes the active backend and activates preferred, or the
// previously active backend when preferred is not registered.
func (r *Registry[B]) Reinitialize(preferred string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return ErrNotInitialized
	}

	target := r.active.Name
	if _, ok := r.lookup(preferred); ok {
		target = preferred
	}

	r.finalize()
	return r.activate(target)
}

// Finalize tears down the active backend. It is a no-op when nothing is active.
func (r *Registry[B]) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finalize()
}

func (r *Registry[B]) finalize() {
	if r.active == nil {
		return
	}

	was := r.active
	if r.hooks.Finalize != nil {
		r.hooks.Finalize(was.Name, was.Backend)
	}
	r.active = nil

	logger.Infof("backend %s finalized", was.Name)
	if r.hooks.Finalized != nil {
		r.hooks.Finalized(was.Name)
	}
}

func (r *Registry[B]) activate(preferred string) error {
	if d, ok := r.lookup(preferred); ok && r.tryInitialize(d) {
		return nil
	}

	for _, d := range r.ordered() {
		if d.Name == preferred {
			continue
		}
		if r.tryInitialize(d) {
			return nil
		}
	}

	logger.Errorf("failed to initialize a backend")
	return ErrNoBackend
}

func (r *Registry[B]) tryInitialize(d *Descriptor[B]) bool {
	if r.hooks.Initialize != nil {
		if err := r.hooks.Initialize(d.Name, d.Backend); err != nil {
			logger.Warnf("backend %s failed to initialize: %v", d.Name, err)
			return false
		}
	}

	r.active = d
	logger.Infof("backend %s initialized", d.Name)
	if r.hooks.Initialized != nil {
		r.hooks.Initialized(d.Name)
	}
	return true
}

// ordered returns the registered backends followed by the fallback.
func (r *Registry[B]) ordered() []*Descriptor[B] {
	all := make([]*Descriptor[B], 0, len(r.backends)+1)
	all = append(all, r.backends...)
	if r.fallback != nil {
		all = append(all, r.fallback)
	}
	return all
}

func (r *Registry[B]) lookup(name string) (*Descriptor[B], bool) {
	return lo.Find(r.ordered(), func(d *Descriptor[B]) bool {
		return d.Name == name
	})
}

// IsInitialized reports whether a backend is active.
func (r *Registry[B]) IsInitialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.active != nil
}

// Active returns the active backend.
func (r *Registry[B]) Active() (B, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		var zero B
		return zero, false
	}
	return r.active.Backend, true
}

// ActiveName returns the name of the active backend, or an empty string.
func (r *Registry[B]) ActiveName() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return ""
	}
	return r.active.Name
}

// Names lists every backend in the order they are tried, fallback last.
func (r *Registry[B]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Map(r.ordered(), func(d *Descriptor[B], _ int) string {
		return d.Name
	})
}

// Descriptors lists every backend in the order they are tried, fallback last.
func (r *Registry[B]) Descriptors() []Descriptor[B] {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Map(r.ordered(), func(d *Descriptor[B], _ int) Descriptor[B] {
		return *d
	})
}

// Lookup returns the backend registered under name.
func (r *Registry[B]) Lookup(name string) (B, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.lookup(name)
	if !ok {
		var zero B
		return zero, fmt.Errorf("unknown backend %q", name)
	}
	return d.Backend, nil
}

// SetApplicationClosingDown marks the application as shutting down, letting
// backends skip graceful but slow teardown steps.
func (r *Registry[B]) SetApplicationClosingDown() {
	r.closingDown.Store(true)
}

// IsApplicationClosingDown reports whether SetApplicationClosingDown was called.
func (r *Registry[B]) IsApplicationClosingDown() bool {
	return r.closingDown.Load()
}
