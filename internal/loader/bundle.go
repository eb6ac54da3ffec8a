// Package loader opens plugin bundles and enumerates the descriptors their
// libraries export.
package loader

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/core"
)

// MaxDescriptors bounds how many entries a descriptor table may have before
// it is treated as malformed.
const MaxDescriptors = 256

var (
	ErrLibraryNotFound   = errors.New("loader: library not found")
	ErrSymbolNotFound    = errors.New("loader: symbol not found")
	ErrMalformedTable    = errors.New("loader: malformed descriptor table")
	ErrNotOpen           = errors.New("loader: bundle not open")
	ErrUnknownID         = errors.New("loader: unknown descriptor identifier")
	ErrInvalidDescriptor = errors.New("loader: invalid descriptor")
	ErrInstantiate       = errors.New("loader: instantiate returned a null handle")
)

// Library is one loaded plugin library.
type Library interface {
	// Enumerator resolves the named descriptor enumeration function.
	Enumerator(symbol string) (abi.EnumerateFunc, error)
	Close() error
}

// Opener loads the library at path.
type Opener func(path string) (Library, error)

// Option configures a Bundle.
type Option func(*Bundle)

// WithOpener replaces the native library backend.
func WithOpener(o Opener) Option {
	return func(b *Bundle) {
		if o != nil {
			b.open = o
		}
	}
}

// WithLogger sets the bundle logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bundle) {
		if l != nil {
			b.log = l
		}
	}
}

// Bundle is a plugin bundle directory and, once opened, its library and
// cached descriptor table.
type Bundle struct {
	path string
	open Opener
	log  *zap.Logger

	mu    sync.Mutex
	lib   Library
	descs []*abi.Descriptor
}

// NewBundle returns a closed bundle for the directory at path.
func NewBundle(path string, opts ...Option) *Bundle {
	b := &Bundle{path: path, open: NativeOpener, log: zap.NewNop()}
	for _, o := range opts {
		o(b)
	}
	b.log = b.log.With(zap.String("bundle", path))
	return b
}

// Path returns the bundle directory.
func (b *Bundle) Path() string { return b.path }

// Open loads the bundle's library and caches its descriptors. An already
// open bundle is closed first. A library without the enumeration symbol is
// left open with no descriptors.
func (b *Bundle) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.closeLocked(); err != nil {
		b.log.Warn("closing previous library", zap.Error(err))
	}

	libPath := LibraryPath(b.path)
	lib, err := b.open(libPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLibraryNotFound, libPath, err)
	}

	enumerate, err := lib.Enumerator(abi.Symbol)
	if err != nil || enumerate == nil {
		b.log.Warn("no descriptor table", zap.String("symbol", abi.Symbol), zap.Error(err))
		b.lib = lib
		return nil
	}

	var descs []*abi.Descriptor
	for i := uint32(0); ; i++ {
		d := enumerate(i)
		if d == nil {
			break
		}
		if len(descs) == MaxDescriptors {
			_ = lib.Close()
			return fmt.Errorf("%w: more than %d descriptors", ErrMalformedTable, MaxDescriptors)
		}
		descs = append(descs, d)
	}

	b.lib = lib
	b.descs = descs
	b.log.Debug("opened", zap.Int("descriptors", len(descs)))
	return nil
}

// Close drops the cached descriptors and unloads the library.
func (b *Bundle) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Bundle) closeLocked() error {
	if b.lib == nil {
		return nil
	}
	b.descs = nil
	lib := b.lib
	b.lib = nil
	return lib.Close()
}

// IsOpen reports whether a library is loaded.
func (b *Bundle) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lib != nil
}

// Descriptors returns the cached descriptor table.
func (b *Bundle) Descriptors() []*abi.Descriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*abi.Descriptor(nil), b.descs...)
}

// Lookup returns the descriptor with the given identifier.
func (b *Bundle) Lookup(id string) (*abi.Descriptor, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.lookupLocked(id)
	return d, d != nil
}

func (b *Bundle) lookupLocked(id string) *abi.Descriptor {
	for _, d := range b.descs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// InstantiateGameCore creates an instance of descriptor id and binds it to
// the descriptor's GameCore table. The caller owns the returned instance and
// must Close it before the bundle is closed.
func (b *Bundle) InstantiateGameCore(id string) (*core.Instance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lib == nil {
		return nil, ErrNotOpen
	}
	d := b.lookupLocked(id)
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownID, id)
	}
	if d.Instantiate == nil || d.Extension == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDescriptor, id)
	}

	h := d.Instantiate(b.path)
	if h == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInstantiate, id)
	}
	inst, err := core.New(d, h)
	if err != nil {
		if d.Destroy != nil {
			d.Destroy(h)
		}
		return nil, err
	}
	b.log.Debug("instantiated game core", zap.String("id", id))
	return inst, nil
}
