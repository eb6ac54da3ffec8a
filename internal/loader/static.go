package loader

import (
	"fmt"
	"sync"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

// Static is an in-process library table. Plugins linked into the host
// provide their enumeration function under the library path a bundle would
// resolve to, and Static.Open stands in for the native opener.
type Static struct {
	mu   sync.RWMutex
	libs map[string]abi.EnumerateFunc
}

// NewStatic returns an empty table.
func NewStatic() *Static {
	return &Static{libs: make(map[string]abi.EnumerateFunc)}
}

// Provide registers fn as the descriptor table of the library at path.
func (s *Static) Provide(path string, fn abi.EnumerateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.libs[path] = fn
}

// Open implements Opener.
func (s *Static) Open(path string) (Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.libs[path]
	if !ok {
		return nil, fmt.Errorf("no static library for %s", path)
	}
	return staticLibrary{enumerate: fn}, nil
}

type staticLibrary struct {
	enumerate abi.EnumerateFunc
}

func (l staticLibrary) Enumerator(symbol string) (abi.EnumerateFunc, error) {
	if symbol != abi.Symbol || l.enumerate == nil {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return l.enumerate, nil
}

func (staticLibrary) Close() error { return nil }
