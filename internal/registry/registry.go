// Package registry is the plugin side of the plugin contract. A plugin
// registers one or more concrete instance types under an identifier; each
// registration becomes an abi.Descriptor whose lifecycle and capability
// functions are thunks over a typed instance arena.
//
// A Registry is an explicit object: create it at plugin start, register
// descriptors, hand its Descriptor method to the loader (or export it via
// the cabi package), and Close it at teardown.
package registry

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

var (
	ErrDuplicateID = errors.New("registry: duplicate descriptor identifier")
	ErrEmptyID     = errors.New("registry: empty descriptor identifier")
	ErrClosed      = errors.New("registry: closed")
	ErrArenaFull   = errors.New("registry: no free instance handles")
)

// Factory creates a plugin instance for the bundle directory it was loaded
// from.
type Factory[T any] func(bundlePath string) (T, error)

// ExtensionDataFunc builds the capability table for id or returns nil.
type ExtensionDataFunc func(id string) any

// Option configures a registration.
type Option func(*registration)

type registration struct {
	extensions []string
	data       ExtensionDataFunc
}

// WithExtensions lists the capability identifiers the descriptor exposes.
// Their tables are built once at registration time.
func WithExtensions(ids ...string) Option {
	return func(r *registration) { r.extensions = append(r.extensions, ids...) }
}

// WithExtensionData replaces the built-in table builder for the listed
// extensions.
func WithExtensionData(fn ExtensionDataFunc) Option {
	return func(r *registration) { r.data = fn }
}

// Registry owns the descriptors of one plugin library.
type Registry struct {
	log *zap.Logger

	mu      sync.RWMutex
	entries []*entry
	closed  bool
}

type entry struct {
	desc       abi.Descriptor
	extensions map[string]any
	teardown   func()
	live       func() int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for instance lifecycle events.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// New returns an empty registry.
func New(opts ...RegistryOption) *Registry {
	r := &Registry{log: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register adds a descriptor for instances of T and returns its index in the
// descriptor table.
func Register[T any](r *Registry, id string, create Factory[T], opts ...Option) (uint32, error) {
	if id == "" {
		return 0, ErrEmptyID
	}
	var reg registration
	for _, o := range opts {
		o(&reg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrClosed
	}
	for _, e := range r.entries {
		if e.desc.ID == id {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
	}

	slots := NewArena[T]()
	log := r.log.With(zap.String("plugin", id))
	e := &entry{
		extensions: make(map[string]any, len(reg.extensions)),
		live:       slots.Len,
	}

	data := reg.data
	if data == nil {
		data = func(ext string) any { return builtinTable(ext, slots) }
	}
	for _, ext := range reg.extensions {
		table := data(ext)
		if table == nil {
			log.Warn("no table for extension", zap.String("extension", ext))
			continue
		}
		e.extensions[ext] = table
	}

	destroy := func(h abi.Handle) {
		inst, ok := slots.Remove(h)
		if !ok {
			log.Debug("destroy of unknown handle", zap.Uint64("handle", uint64(h)))
			return
		}
		if c, ok := any(inst).(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn("instance close failed", zap.Error(err))
			}
		}
	}

	e.desc = abi.Descriptor{
		ID: id,
		Instantiate: func(bundlePath string) abi.Handle {
			inst, err := create(bundlePath)
			if err != nil {
				log.Error("instantiate failed", zap.String("bundle", bundlePath), zap.Error(err))
				return 0
			}
			h := slots.Insert(inst)
			if h == 0 {
				log.Error("instantiate failed", zap.String("bundle", bundlePath), zap.Error(ErrArenaFull))
				if c, ok := any(inst).(io.Closer); ok {
					_ = c.Close()
				}
				return 0
			}
			log.Debug("instantiated", zap.Uint64("handle", uint64(h)))
			return h
		},
		Destroy: destroy,
		Extension: func(ext string) any {
			return e.extensions[ext]
		},
	}
	e.teardown = func() {
		for _, h := range slots.Handles() {
			destroy(h)
		}
	}

	r.entries = append(r.entries, e)
	return uint32(len(r.entries) - 1), nil
}

// Descriptor returns the descriptor at index, or nil past the end. It has
// the shape of abi.EnumerateFunc.
func (r *Registry) Descriptor(index uint32) *abi.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if uint64(index) >= uint64(len(r.entries)) {
		return nil
	}
	return &r.entries[index].desc
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Live returns the number of instances not yet destroyed across all
// descriptors.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		n += e.live()
	}
	return n
}

// Close destroys every live instance and drops all descriptors. Descriptor
// pointers handed out earlier must not be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.closed = true
	r.mu.Unlock()

	for _, e := range entries {
		if n := e.live(); n > 0 {
			r.log.Warn("destroying leaked instances", zap.String("plugin", e.desc.ID), zap.Int("count", n))
		}
		e.teardown()
	}
	return nil
}
