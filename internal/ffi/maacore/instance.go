package maacore

/*
#include <stdlib.h>
#include "maacore.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/maasd/maasd/internal/ffi"
)

// instance owns one engine handle exclusively. It is not safe for
// concurrent use; the session layer serializes access to it.
type instance struct {
	handle C.AsstHandle
	ctx    cgo.Handle
}

func (i *instance) SetOption(key int32, value string) error {
	if i.handle == nil {
		return ffi.ErrInvalidHandle
	}
	cValue := C.CString(value)
	defer C.free(unsafe.Pointer(cValue))
	if C.AsstSetInstanceOption(i.handle, C.AsstInstanceOptionKey(key), cValue) != engineOK {
		return ffi.ErrOperationRejected
	}
	return nil
}

func (i *instance) Connect(adbPath, address, config string) (ffi.CallID, error) {
	if i.handle == nil {
		return 0, ffi.ErrInvalidHandle
	}
	cAdb := C.CString(adbPath)
	defer C.free(unsafe.Pointer(cAdb))
	cAddr := C.CString(address)
	defer C.free(unsafe.Pointer(cAddr))
	var cCfg *C.char
	if config != "" {
		cCfg = C.CString(config)
		defer C.free(unsafe.Pointer(cCfg))
	}
	id := C.AsstAsyncConnect(i.handle, cAdb, cAddr, cCfg, 1)
	if id == 0 {
		return 0, ffi.ErrOperationRejected
	}
	return ffi.CallID(id), nil
}

func (i *instance) Click(x, y int32) (ffi.CallID, error) {
	if i.handle == nil {
		return 0, ffi.ErrInvalidHandle
	}
	id := C.AsstAsyncClick(i.handle, C.int32_t(x), C.int32_t(y), 0)
	if id == 0 {
		return 0, ffi.ErrOperationRejected
	}
	return ffi.CallID(id), nil
}

func (i *instance) Screencap() (ffi.CallID, error) {
	if i.handle == nil {
		return 0, ffi.ErrInvalidHandle
	}
	id := C.AsstAsyncScreencap(i.handle, 1)
	if id == 0 {
		return 0, ffi.ErrOperationRejected
	}
	return ffi.CallID(id), nil
}

func (i *instance) AppendTask(taskType, params string) (ffi.TaskID, error) {
	if i.handle == nil {
		return 0, ffi.ErrInvalidHandle
	}
	cType := C.CString(taskType)
	defer C.free(unsafe.Pointer(cType))
	cParams := C.CString(params)
	defer C.free(unsafe.Pointer(cParams))
	id := C.AsstAppendTask(i.handle, cType, cParams)
	if id == 0 {
		return 0, ffi.ErrOperationRejected
	}
	return ffi.TaskID(id), nil
}

func (i *instance) SetTaskParams(id ffi.TaskID, params string) error {
	if i.handle == nil {
		return ffi.ErrInvalidHandle
	}
	cParams := C.CString(params)
	defer C.free(unsafe.Pointer(cParams))
	if C.AsstSetTaskParams(i.handle, C.AsstTaskId(id), cParams) != engineOK {
		return ffi.ErrOperationRejected
	}
	return nil
}

func (i *instance) Start() error {
	if i.handle == nil {
		return ffi.ErrInvalidHandle
	}
	if C.AsstStart(i.handle) != engineOK {
		return ffi.ErrOperationRejected
	}
	return nil
}

func (i *instance) Stop() error {
	if i.handle == nil {
		return ffi.ErrInvalidHandle
	}
	if C.AsstStop(i.handle) != engineOK {
		return ffi.ErrOperationRejected
	}
	return nil
}

func (i *instance) Running() bool {
	if i.handle == nil {
		return false
	}
	return C.AsstRunning(i.handle) == engineOK
}

func (i *instance) GetImage(buf []byte) uint64 {
	if i.handle == nil || len(buf) == 0 {
		return 0
	}
	return uint64(C.AsstGetImage(i.handle, unsafe.Pointer(&buf[0]), C.AsstSize(len(buf))))
}

func (i *instance) GetUUID(buf []byte) uint64 {
	if i.handle == nil || len(buf) == 0 {
		return 0
	}
	return uint64(C.AsstGetUUID(i.handle, (*C.char)(unsafe.Pointer(&buf[0])), C.AsstSize(len(buf))))
}

func (i *instance) GetTaskList(buf []ffi.TaskID) uint64 {
	if i.handle == nil || len(buf) == 0 {
		return 0
	}
	return uint64(C.AsstGetTasksList(i.handle, (*C.AsstTaskId)(unsafe.Pointer(&buf[0])), C.AsstSize(len(buf))))
}

// Close destroys the handle first, then releases the callback context.
// The order matters: once AsstDestroy returns the engine can no longer
// invoke the trampoline, so deleting the cgo.Handle cannot race a
// delivery. Releasing it earlier would be a use-after-free on the engine
// thread; never releasing it leaks one allocation per instance.
func (i *instance) Close() error {
	if i.handle != nil {
		C.AsstDestroy(i.handle)
		i.handle = nil
	}
	if i.ctx != 0 {
		i.ctx.Delete()
		i.ctx = 0
	}
	return nil
}
