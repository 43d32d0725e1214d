// Package maacore is the cgo binding to the native MaaCore library. It is
// the only package that touches C; it implements ffi.Surface and
// ffi.Instance and converts every engine status code into the ffi error
// taxonomy at this boundary.
package maacore

/*
#cgo LDFLAGS: -lMaaCore
#include <stdlib.h>
#include "maacore.h"
*/
import "C"

import (
	"runtime/cgo"
	"unicode/utf8"
	"unsafe"

	"github.com/maasd/maasd/internal/ffi"
)

const engineOK = C.AsstBool(1)

// Core implements ffi.Surface over the loaded MaaCore library. The
// null-size sentinel is fetched once at construction and compared by value
// afterwards; it differs across library versions.
type Core struct {
	nullSize uint64
}

func New() *Core {
	return &Core{nullSize: uint64(C.AsstGetNullSize())}
}

func (c *Core) NullSize() uint64 { return c.nullSize }

func (c *Core) Version() (string, error) {
	p := C.AsstGetVersion()
	if p == nil {
		return "", ffi.ErrOperationRejected
	}
	v := C.GoString(p)
	if !utf8.ValidString(v) {
		return "", ffi.ErrEncoding
	}
	return v, nil
}

func (c *Core) LoadResource(path string) error {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	if C.AsstLoadResource(cPath) != engineOK {
		return ffi.ErrOperationRejected
	}
	return nil
}

func (c *Core) SetStaticOption(key int32, value string) error {
	cValue := C.CString(value)
	defer C.free(unsafe.Pointer(cValue))
	if C.AsstSetStaticOption(C.AsstStaticOptionKey(key), cValue) != engineOK {
		return ffi.ErrOperationRejected
	}
	return nil
}

func (c *Core) SetUserDir(path string) error {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	if C.AsstSetUserDir(cPath) != engineOK {
		return ffi.ErrOperationRejected
	}
	return nil
}

func (c *Core) Log(level, message string) {
	cLevel := C.CString(level)
	defer C.free(unsafe.Pointer(cLevel))
	cMessage := C.CString(message)
	defer C.free(unsafe.Pointer(cMessage))
	C.AsstLog(cLevel, cMessage)
}

// Create allocates an engine handle with the callback trampoline
// registered. The sink is pinned behind a cgo.Handle whose integer value
// is the opaque context pointer the engine passes back on every event.
func (c *Core) Create(sink ffi.EventFunc) (ffi.Instance, error) {
	ctx := cgo.NewHandle(sink)
	h := C.AsstCreateEx(C.AsstApiCallback(C.maasdEngineCallback), unsafe.Pointer(ctx))
	if h == nil {
		ctx.Delete()
		return nil, ffi.ErrInvalidHandle
	}
	return &instance{handle: h, ctx: ctx}, nil
}
