// Package abi describes the fixed plugin contract shared by hosts and
// plugins: descriptors, capability tables, handles and control codes.
//
// At the binary boundary a plugin exports
//
//	const JemuDescriptor* jemu_descriptor(uint32_t index);
//
// returning one descriptor per index and NULL past the last one. The Go
// types here are the in-process shape of the same contract; the loader
// converts C tables into them and the cabi package converts them back.
package abi

// Symbol is the name of the enumeration function a plugin library exports.
const Symbol = "jemu_descriptor"

const prefix = "org.jemu."

// Capability identifiers passed to Descriptor.Extension.
const (
	GameCoreID      = prefix + "GameCore"
	GamePadID       = prefix + "GamePad"
	GamePadSourceID = prefix + "GamePadSource"
	MFIID           = prefix + "MFI"
)

// Plugin identifiers known to the host.
const (
	NestopiaID = prefix + "Nestopia"
	TestcardID = prefix + "Testcard"
)

// Video frames are 32-bit pixels in a fixed 256x240 frame.
const (
	FrameWidth  = 256
	FrameHeight = 240
	FrameBytes  = FrameWidth * FrameHeight * 4
)

// FrameRate is the emulated frame rate. One tick is one emulated frame, and
// a core queues one frame's worth of audio per tick whatever rate the host
// ticks at.
const FrameRate = 60

// Handle is an opaque token for one plugin instance. Zero is the null handle.
// The caller of Instantiate owns it and must pass it to the same
// descriptor's Destroy exactly once.
type Handle uintptr

// GamePadHandle identifies one pad reported by a GamePad capability.
type GamePadHandle uintptr

// Descriptor is a plugin's self-advertised identity and lifecycle entry
// points.
type Descriptor struct {
	// ID is unique within one library's descriptor table.
	ID string

	// Instantiate allocates a plugin instance. Returns 0 on failure.
	Instantiate func(bundlePath string) Handle

	// Destroy releases an instance returned by Instantiate.
	Destroy func(Handle)

	// Extension returns the capability table for id, or nil when the
	// capability is not supported. Tables are owned by the plugin.
	Extension func(id string) any
}

// EnumerateFunc returns the descriptor at index or nil past the last one.
type EnumerateFunc func(index uint32) *Descriptor

// GameCore is the capability table behind GameCoreID. Prepare and Release
// are optional; callers must nil-check every entry.
type GameCore struct {
	Prepare func(Handle)
	Release func(Handle)
	Tick    func(Handle)
	Reset   func(Handle)
	Load    func(h Handle, romPath string) bool

	// ReadAudio fills out with mono samples.
	ReadAudio func(h Handle, out []float32)

	// VideoFrame returns FrameBytes of pixel data owned by the plugin and
	// valid until the next Tick, or nil.
	VideoFrame func(Handle) []byte

	ButtonPress func(h Handle, button uint32, pressed bool)
}

// GamePad is the capability table behind GamePadID.
type GamePad struct {
	// Discover starts or stops scanning for connected controllers.
	Discover func(h Handle, scan bool)
	Name     func(h Handle, pad GamePadHandle) string
}
