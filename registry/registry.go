// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package registry holds the named services a process exposes. Services are
// registered explicitly at startup instead of through package globals.
package registry

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("registry already initialized")
	// ErrAlreadyRegistered is returned when a name is taken.
	ErrAlreadyRegistered = errors.New("name already registered")
)

// Registry maps names to services.
type Registry struct {
	mu          sync.RWMutex
	initialized bool
	entries     map[string]interface{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]interface{})}
}

// Initialize registers entries as one unit. It runs at most once per
// registry; later calls fail with ErrAlreadyInitialized and change nothing.
func (r *Registry) Initialize(entries map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return ErrAlreadyInitialized
	}
	for name := range entries {
		if _, ok := r.entries[name]; ok {
			return errors.Wrap(ErrAlreadyRegistered, name)
		}
	}
	for name, v := range entries {
		r.entries[name] = v
	}
	r.initialized = true
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Register adds a single service.
func (r *Registry) Register(name string, v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return errors.Wrap(ErrAlreadyRegistered, name)
	}
	r.entries[name] = v
	return nil
}

// Lookup returns the service registered under name.
func (r *Registry) Lookup(name string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[name]
	return v, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
