// Package cabi exports a plugin registry through the C descriptor contract.
// A plugin built with -buildmode=c-shared imports this package and calls
// Install from an init function; the host then resolves jemu_descriptor.
package cabi

/*
#include <stdlib.h>
#include "jemu.h"
*/
import "C"

import (
	"unsafe"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
	"github.com/FabianRolfMatthiasNoll/jemu/internal/registry"
)

//export jemuGoDescriptor
func jemuGoDescriptor(index C.uint32_t) *C.JemuDescriptor {
	if !exported(uint32(index)) {
		return nil
	}
	return (*C.JemuDescriptor)(unsafe.Pointer(C.jemu_slot(index)))
}

//export jemuGoInstantiate
func jemuGoInstantiate(slot C.uint32_t, path *C.char) C.JemuHandle {
	return C.JemuHandle(instantiate(uint32(slot), C.GoString(path)))
}

//export jemuGoDestroy
func jemuGoDestroy(slot C.uint32_t, h C.JemuHandle) {
	destroy(uint32(slot), abi.Handle(h))
}

//export jemuGoExtension
func jemuGoExtension(slot C.uint32_t, id *C.char) C.int {
	switch extension(uint32(slot), C.GoString(id)) {
	case extGameCore:
		return C.int(C.JEMU_EXT_GAME_CORE)
	case extGamePad:
		return C.int(C.JEMU_EXT_GAME_PAD)
	}
	return C.int(C.JEMU_EXT_NONE)
}

//export jemuGoPrepare
func jemuGoPrepare(slot C.uint32_t, h C.JemuHandle) {
	gameCoreCall(uint32(slot), abi.Handle(h), func(t *abi.GameCore, h abi.Handle) {
		if t.Prepare != nil {
			t.Prepare(h)
		}
	})
}

//export jemuGoRelease
func jemuGoRelease(slot C.uint32_t, h C.JemuHandle) {
	gameCoreCall(uint32(slot), abi.Handle(h), func(t *abi.GameCore, h abi.Handle) {
		if t.Release != nil {
			t.Release(h)
		}
	})
}

//export jemuGoTick
func jemuGoTick(slot C.uint32_t, h C.JemuHandle) {
	gameCoreCall(uint32(slot), abi.Handle(h), func(t *abi.GameCore, h abi.Handle) {
		if t.Tick != nil {
			t.Tick(h)
		}
	})
}

//export jemuGoReset
func jemuGoReset(slot C.uint32_t, h C.JemuHandle) {
	gameCoreCall(uint32(slot), abi.Handle(h), func(t *abi.GameCore, h abi.Handle) {
		if t.Reset != nil {
			t.Reset(h)
		}
	})
}

//export jemuGoLoad
func jemuGoLoad(slot C.uint32_t, h C.JemuHandle, path *C.char) C.bool {
	return C.bool(load(uint32(slot), abi.Handle(h), C.GoString(path)))
}

//export jemuGoReadAudio
func jemuGoReadAudio(slot C.uint32_t, h C.JemuHandle, out *C.float, n C.uint32_t) {
	if out == nil || n == 0 {
		return
	}
	buf := unsafe.Slice((*float32)(unsafe.Pointer(out)), int(n))
	readAudio(uint32(slot), abi.Handle(h), buf)
}

//export jemuGoVideoFrame
func jemuGoVideoFrame(slot C.uint32_t, h C.JemuHandle) *C.uint8_t {
	frame := videoFrame(uint32(slot), abi.Handle(h))
	if len(frame) == 0 {
		return nil
	}
	dst := frameBuffer(uint32(slot), abi.Handle(h), func() unsafe.Pointer {
		return C.calloc(1, C.size_t(abi.FrameBytes))
	})
	if dst == nil {
		return nil
	}
	copy(unsafe.Slice((*byte)(dst), abi.FrameBytes), frame)
	return (*C.uint8_t)(dst)
}

//export jemuGoButtonPress
func jemuGoButtonPress(slot C.uint32_t, h C.JemuHandle, button C.uint32_t, pressed C.bool) {
	gameCoreCall(uint32(slot), abi.Handle(h), func(t *abi.GameCore, h abi.Handle) {
		if t.ButtonPress != nil {
			t.ButtonPress(h, uint32(button), bool(pressed))
		}
	})
}

//export jemuGoDiscover
func jemuGoDiscover(slot C.uint32_t, h C.JemuHandle, scan C.bool) {
	discover(uint32(slot), abi.Handle(h), bool(scan))
}

//export jemuGoPadName
func jemuGoPadName(slot C.uint32_t, h C.JemuHandle, pad C.JemuGamePadHandle) *C.char {
	name := padName(uint32(slot), abi.Handle(h), abi.GamePadHandle(pad))
	if name == "" {
		return nil
	}
	return (*C.char)(cString(name))
}

// Install exports the descriptors of r. Calling it again replaces the
// previous table. At most MaxDescriptors descriptors can be exported.
func Install(r *registry.Registry) error {
	return install(r, func(slot uint32, id string) {
		C.jemu_slot_init(C.uint32_t(slot), (*C.char)(cString(id)))
	})
}

// cString returns a C copy of s that lives for the rest of the process.
func cString(s string) unsafe.Pointer {
	return cstrings.intern(s, func() unsafe.Pointer { return unsafe.Pointer(C.CString(s)) })
}

// freeFrame releases a frame buffer allocated by jemuGoVideoFrame.
var freeFrame = func(p unsafe.Pointer) { C.free(p) }
