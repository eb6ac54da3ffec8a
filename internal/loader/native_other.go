//go:build !(darwin || freebsd || linux)

package loader

import (
	"errors"
	"fmt"
	"runtime"
)

// NativeOpener is unavailable on this platform; use a Static table.
func NativeOpener(path string) (Library, error) {
	return nil, fmt.Errorf("%s: %w on %s", path, errors.ErrUnsupported, runtime.GOOS)
}
