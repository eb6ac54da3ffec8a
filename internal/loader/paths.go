package loader

import (
	"path/filepath"
	"runtime"
	"strings"
)

// BundleExt is the directory suffix of a plugin bundle.
func BundleExt() string {
	if runtime.GOOS == "darwin" {
		return ".jemu"
	}
	return ".emu"
}

// LibraryExt is the platform shared library suffix.
func LibraryExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	}
	return ".so"
}

// BundlePath returns the bundle directory for the named plugin.
func BundlePath(pluginsDir, name string) string {
	return filepath.Join(pluginsDir, name+BundleExt())
}

// LibraryPath returns the shared library inside bundle. It is named after
// the bundle directory without its suffix.
func LibraryPath(bundle string) string {
	base := filepath.Base(filepath.Clean(bundle))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(bundle, name+LibraryExt())
}
