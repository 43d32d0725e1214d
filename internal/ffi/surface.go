// Package ffi defines the call surface of the native MaaCore automation
// engine as plain Go interfaces, plus the buffer negotiation protocol used
// by every variable-length accessor.
//
// The cgo binding lives in the maacore subpackage; everything above this
// layer depends only on the interfaces here so it can be exercised with
// fakes. No raw engine status code crosses this boundary: implementations
// convert every non-success status into one of the sentinel errors below
// before returning.
package ffi

import "errors"

var (
	// ErrInvalidHandle is returned for operations attempted after the
	// engine handle was released or never successfully created.
	ErrInvalidHandle = errors.New("ffi: invalid engine handle")

	// ErrOperationRejected is returned when the engine reports a
	// non-success status for an operation that carries no data.
	ErrOperationRejected = errors.New("ffi: operation rejected by engine")

	// ErrOversizedResult is returned when a variable-length result exceeds
	// the negotiation ceiling for its data kind.
	ErrOversizedResult = errors.New("ffi: result exceeds negotiation ceiling")

	// ErrEncoding is returned when text received across the engine
	// boundary is not valid UTF-8.
	ErrEncoding = errors.New("ffi: invalid text encoding from engine")
)

// CallID correlates an issued asynchronous engine operation with its
// eventual completion event.
type CallID int32

// TaskID identifies a task registered on one engine instance. Unique per
// instance only.
type TaskID int32

// EventFunc receives asynchronous engine events. The engine invokes it
// from a thread it owns, so implementations must not block and must not
// call back into the engine. The payload is the raw detail bytes as
// reported, with no encoding guarantee.
type EventFunc func(kind int32, payload []byte)

// Surface is the process-wide face of the engine library: static options,
// resource loading, and instance creation.
type Surface interface {
	// Version reports the engine library version string.
	Version() (string, error)

	// LoadResource loads the engine resource bundle from path. Must be
	// called before any instance exists.
	LoadResource(path string) error

	// SetStaticOption sets a process-wide engine option. Only valid
	// before the first instance is created; the engine does not enforce
	// this, it is a documented precondition.
	SetStaticOption(key int32, value string) error

	// SetUserDir points the engine at its writable working directory.
	SetUserDir(path string) error

	// Log forwards a message into the engine's own log stream.
	Log(level, message string)

	// NullSize reports the engine's "buffer too small" sentinel. Fetched
	// from the library at runtime; never assume a fixed literal.
	NullSize() uint64

	// Create allocates a new engine instance with sink registered as its
	// event callback. The sink stays registered for the instance's whole
	// lifetime and may fire until Close returns.
	Create(sink EventFunc) (Instance, error)
}

// Instance is one engine handle. Implementations own the handle
// exclusively; the handle itself is never exposed. Instances are not safe
// for concurrent use: callers serialize access (the session layer does).
type Instance interface {
	// SetOption sets a per-instance engine option.
	SetOption(key int32, value string) error

	// Connect attaches the instance to a device. config may be empty.
	Connect(adbPath, address, config string) (CallID, error)

	// Click issues an asynchronous click at device coordinates.
	Click(x, y int32) (CallID, error)

	// Screencap asks the engine to refresh its screen capture.
	Screencap() (CallID, error)

	// AppendTask registers a task of the given type with flat JSON params.
	AppendTask(taskType, params string) (TaskID, error)

	// SetTaskParams replaces the parameters of a previously appended task.
	SetTaskParams(id TaskID, params string) error

	// Start runs the appended tasks; Stop aborts them.
	Start() error
	Stop() error

	// Running reports whether the instance is currently executing tasks.
	Running() bool

	// GetImage writes the latest capture into buf and returns the byte
	// count, or the NullSize sentinel if buf is too small.
	GetImage(buf []byte) uint64

	// GetUUID writes the device identifier into buf and returns the byte
	// count, or the NullSize sentinel if buf is too small.
	GetUUID(buf []byte) uint64

	// GetTaskList writes the live task ids into buf and returns the
	// element count, or the NullSize sentinel if buf is too small.
	GetTaskList(buf []TaskID) uint64

	// Close destroys the engine handle and then releases the callback
	// context, in that order: after the handle is gone no further callback
	// can fire, so the context is safe to reclaim. Idempotent.
	Close() error
}
