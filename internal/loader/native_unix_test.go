//go:build darwin || freebsd || linux

package loader

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

// moduleRoot is the directory holding go.mod above this file.
func moduleRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found")
		}
		dir = parent
	}
}

// buildTestcard compiles plugins/testcard as a shared library inside a fresh
// bundle and returns the bundle path.
func buildTestcard(t *testing.T) string {
	t.Helper()
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not on PATH")
	}
	bundle := BundlePath(t.TempDir(), "Testcard")
	require.NoError(t, os.MkdirAll(bundle, 0o755))

	cmd := exec.Command(goBin, "build", "-buildmode=c-shared", "-o", LibraryPath(bundle), "./plugins/testcard")
	cmd.Dir = moduleRoot(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build plugin:\n%s", out)
	return bundle
}

func TestNativeOpener_Testcard(t *testing.T) {
	// Opt-in: needs cgo and a C compiler.
	if os.Getenv("RUN_NATIVE") == "" {
		t.Skip("set RUN_NATIVE=1 to build the testcard plugin as a shared library and load it")
	}
	bundle := buildTestcard(t)

	b := NewBundle(bundle)
	require.NoError(t, b.Open())
	defer b.Close()

	descs := b.Descriptors()
	require.Len(t, descs, 1)
	d := descs[0]
	assert.Equal(t, abi.TestcardID, d.ID)
	assert.Nil(t, d.Extension(abi.MFIID))

	gc, ok := d.Extension(abi.GameCoreID).(*abi.GameCore)
	require.True(t, ok)
	assert.NotNil(t, gc.Tick)
	assert.NotNil(t, gc.ReadAudio)
	assert.NotNil(t, gc.VideoFrame)
	assert.Same(t, gc, d.Extension(abi.GameCoreID), "tables are converted once")

	pad, ok := d.Extension(abi.GamePadID).(*abi.GamePad)
	require.True(t, ok)
	require.NotNil(t, pad.Name)

	inst, err := b.InstantiateGameCore(abi.TestcardID)
	require.NoError(t, err)
	assert.Equal(t, "Testcard Pad", pad.Name(inst.Handle(), 0))

	rom := filepath.Join(t.TempDir(), "game.nes")
	require.NoError(t, os.WriteFile(rom, []byte{1}, 0o644))
	inst.Prepare()
	assert.True(t, inst.Load(rom))
	inst.Tick()

	samples := make([]float32, 800)
	inst.ReadAudio(samples)
	nonZero := 0
	for _, s := range samples {
		if s != 0 {
			nonZero++
		}
	}
	assert.Greater(t, nonZero, 700)

	frame := inst.VideoFrame()
	require.Len(t, frame, abi.FrameBytes)
	assert.Equal(t, byte(0xff), frame[3])

	require.NoError(t, inst.Close())
	assert.Zero(t, inst.Handle())
	require.NoError(t, inst.Close())
}
