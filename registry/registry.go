// Package registry resolves diffraction file readers by simple name.
//
// Format-specific readers (HDF5, TIFF, per-beamline layouts) live outside
// this module; they plug in by implementing FileReader. The loader and the
// assembled dataset never see a format, only the PatternArray capability.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/diffra/model"
)

// FileReader reads one diffraction file format.
type FileReader interface {
	// SimpleName is the registry key, e.g. "NPZ" or "HDF5".
	SimpleName() string
	// Read opens the file and returns its metadata and source arrays.
	Read(ctx context.Context, path string) (model.Dataset, error)
}

// Registry is a typed, duplicate-rejecting FileReader registry, resolved
// once at startup.
type Registry struct {
	mu      sync.RWMutex
	readers map[string]FileReader
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{readers: make(map[string]FileReader)}
}

// Register adds a reader. Registering the same simple name twice is a
// programming error and is rejected.
func (r *Registry) Register(reader FileReader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := reader.SimpleName()
	if _, ok := r.readers[name]; ok {
		return fmt.Errorf("registry: reader %q already registered", name)
	}
	r.readers[name] = reader
	return nil
}

// Lookup resolves a reader by simple name.
func (r *Registry) Lookup(name string) (FileReader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reader, ok := r.readers[name]
	if !ok {
		return nil, fmt.Errorf("registry: no reader named %q", name)
	}
	return reader, nil
}

// Names returns the registered simple names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.readers))
	for name := range r.readers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
