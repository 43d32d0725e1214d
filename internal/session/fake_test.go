package session

import (
	"github.com/maasd/maasd/internal/ffi"
)

// fakeNullSize mimics the engine's runtime-reported "buffer too small"
// sentinel.
const fakeNullSize = ^uint64(0)

type connectCall struct {
	adbPath string
	address string
	config  string
}

// fakeInstance implements ffi.Instance for session tests.
type fakeInstance struct {
	closed bool

	uuid      string
	uuidCalls int

	image []byte

	nextTaskID ffi.TaskID
	tasks      map[ffi.TaskID]string // id -> last params
	taskTypes  map[ffi.TaskID]string
	live       []ffi.TaskID // nil means "everything ever appended"

	connects []connectCall
	started  bool
	stopped  bool

	rejectAll bool
}

func newFakeInstance() *fakeInstance {
	return &fakeInstance{
		uuid:      "fake-device-uuid",
		tasks:     make(map[ffi.TaskID]string),
		taskTypes: make(map[ffi.TaskID]string),
	}
}

func (f *fakeInstance) SetOption(key int32, value string) error {
	if f.rejectAll {
		return ffi.ErrOperationRejected
	}
	return nil
}

func (f *fakeInstance) Connect(adbPath, address, config string) (ffi.CallID, error) {
	if f.rejectAll {
		return 0, ffi.ErrOperationRejected
	}
	f.connects = append(f.connects, connectCall{adbPath, address, config})
	return ffi.CallID(len(f.connects)), nil
}

func (f *fakeInstance) Click(x, y int32) (ffi.CallID, error) {
	if f.rejectAll {
		return 0, ffi.ErrOperationRejected
	}
	return 1, nil
}

func (f *fakeInstance) Screencap() (ffi.CallID, error) {
	if f.rejectAll {
		return 0, ffi.ErrOperationRejected
	}
	return 1, nil
}

func (f *fakeInstance) AppendTask(taskType, params string) (ffi.TaskID, error) {
	f.nextTaskID++
	f.tasks[f.nextTaskID] = params
	f.taskTypes[f.nextTaskID] = taskType
	return f.nextTaskID, nil
}

func (f *fakeInstance) SetTaskParams(id ffi.TaskID, params string) error {
	if f.rejectAll {
		return ffi.ErrOperationRejected
	}
	f.tasks[id] = params
	return nil
}

func (f *fakeInstance) Start() error {
	if f.rejectAll {
		return ffi.ErrOperationRejected
	}
	f.started = true
	return nil
}

func (f *fakeInstance) Stop() error {
	if f.rejectAll {
		return ffi.ErrOperationRejected
	}
	f.stopped = true
	return nil
}

func (f *fakeInstance) Running() bool { return f.started && !f.stopped }

func (f *fakeInstance) GetImage(buf []byte) uint64 {
	if len(buf) < len(f.image) {
		return fakeNullSize
	}
	copy(buf, f.image)
	return uint64(len(f.image))
}

func (f *fakeInstance) GetUUID(buf []byte) uint64 {
	f.uuidCalls++
	if len(buf) < len(f.uuid) {
		return fakeNullSize
	}
	copy(buf, f.uuid)
	return uint64(len(f.uuid))
}

func (f *fakeInstance) GetTaskList(buf []ffi.TaskID) uint64 {
	live := f.live
	if live == nil {
		for id := ffi.TaskID(1); id <= f.nextTaskID; id++ {
			live = append(live, id)
		}
	}
	if len(buf) < len(live) {
		return fakeNullSize
	}
	copy(buf, live)
	return uint64(len(live))
}

func (f *fakeInstance) Close() error {
	f.closed = true
	return nil
}

// fakeSurface implements ffi.Surface, handing out fakeInstances and
// remembering the sinks registered with them.
type fakeSurface struct {
	instances  []*fakeInstance
	sinks      []ffi.EventFunc
	failCreate bool
}

func (s *fakeSurface) Version() (string, error)                { return "v4.9.0", nil }
func (s *fakeSurface) LoadResource(path string) error          { return nil }
func (s *fakeSurface) SetStaticOption(k int32, v string) error { return nil }
func (s *fakeSurface) SetUserDir(path string) error            { return nil }
func (s *fakeSurface) Log(level, message string)               {}
func (s *fakeSurface) NullSize() uint64                        { return fakeNullSize }

func (s *fakeSurface) Create(sink ffi.EventFunc) (ffi.Instance, error) {
	if s.failCreate {
		return nil, ffi.ErrInvalidHandle
	}
	inst := newFakeInstance()
	s.instances = append(s.instances, inst)
	s.sinks = append(s.sinks, sink)
	return inst, nil
}
