package ffi

import "fmt"

// Profile bounds one buffer negotiation: the first allocation and the hard
// ceiling past which the result is rejected instead of growing further.
// Sizes are in elements, not bytes.
type Profile struct {
	Initial int
	Ceiling int
}

// Negotiation profiles per data kind. Image sizes assume 1920x1080 RGBA
// frames: two frames to start, ten as the absolute cap.
var (
	ProfileText  = Profile{Initial: 1024, Ceiling: 1024 * 1024}
	ProfileTasks = Profile{Initial: 1024, Ceiling: 1024 * 1024}
	ProfileImage = Profile{Initial: 2 * 1920 * 1080 * 4, Ceiling: 10 * 1920 * 1080 * 4}
)

// Negotiate runs the variable-length retrieval protocol against op: allocate
// a buffer, let the engine fill it, and if the engine answers with the
// runtime-fetched nullSize sentinel, double and retry. The ceiling turns a
// misbehaving engine into ErrOversizedResult instead of unbounded growth.
// On success the buffer is truncated to exactly the reported length, so the
// caller never observes uninitialized tail bytes.
func Negotiate[T any](op func([]T) uint64, nullSize uint64, p Profile) ([]T, error) {
	for size := p.Initial; ; size *= 2 {
		if size > p.Ceiling {
			return nil, fmt.Errorf("%w: next buffer %d exceeds ceiling %d", ErrOversizedResult, size, p.Ceiling)
		}
		buf := make([]T, size)
		n := op(buf)
		if n == nullSize {
			continue
		}
		if n > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: engine reported %d for buffer %d", ErrOversizedResult, n, len(buf))
		}
		return buf[:n], nil
	}
}
