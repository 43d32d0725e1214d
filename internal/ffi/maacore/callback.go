package maacore

/*
#include <string.h>
#include "maacore.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/maasd/maasd/internal/ffi"
)

// maasdGoEngineEvent is the Go half of the callback bridge. custom_arg is
// the cgo.Handle pinned at instance creation; the engine is contracted to
// pass it back verbatim on every invocation. The handle stays valid until
// Close deletes it, which happens only after AsstDestroy has returned, so
// no invocation can race the teardown.
//
//export maasdGoEngineEvent
func maasdGoEngineEvent(msg C.int32_t, details *C.char, ctx unsafe.Pointer) {
	// An asynchronous event that cannot be delivered must never propagate
	// a failure into the engine's calling thread.
	defer func() { _ = recover() }()

	if ctx == nil {
		return
	}
	sink, ok := cgo.Handle(uintptr(ctx)).Value().(ffi.EventFunc)
	if !ok || sink == nil {
		return
	}

	var payload []byte
	if details != nil {
		payload = C.GoBytes(unsafe.Pointer(details), C.int(C.strlen(details)))
	}
	sink(int32(msg), payload)
}
