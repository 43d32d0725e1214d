// Package session wraps engine instances in concurrency-safe sessions and
// manages their lifecycle. Each Session owns one engine handle
// exclusively; the Manager maps numeric session ids to live Sessions.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/maasd/maasd/internal/ffi"
)

var (
	// ErrUnknownTask is returned when a task id was never registered on
	// this session. The engine itself does not distinguish this case, so
	// the session tracks known ids to give a precise error.
	ErrUnknownTask = errors.New("session: unknown task id")

	// ErrNotFound is returned when a session id has no live session.
	ErrNotFound = errors.New("session: instance not found")
)

// Task is one registered task with the parameters it was last given at
// creation time.
type Task struct {
	ID     ffi.TaskID `json:"id"`
	Type   string     `json:"type"`
	Params string     `json:"params"`
}

// Session is the managed wrapper around one engine instance. All
// operations take the session's own lock for the duration of the foreign
// call: the underlying handle is not safe for concurrent use.
type Session struct {
	id       int64
	nullSize uint64

	mu     sync.Mutex
	inst   ffi.Instance
	closed bool
	uuid   string
	target string
	tasks  map[ffi.TaskID]Task
}

func newSession(id int64, inst ffi.Instance, nullSize uint64) *Session {
	return &Session{
		id:       id,
		nullSize: nullSize,
		inst:     inst,
		tasks:    make(map[ffi.TaskID]Task),
	}
}

func (s *Session) ID() int64 { return s.id }

// Connect attaches the session to a device. Reconnecting overwrites the
// cached target; the prior engine-side connection is left alone.
func (s *Session) Connect(adbPath, address string, config json.RawMessage) (ffi.CallID, error) {
	cfg, err := flattenConfig(config)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ffi.ErrInvalidHandle
	}
	id, err := s.inst.Connect(adbPath, address, cfg)
	if err != nil {
		return 0, err
	}
	s.target = address
	return id, nil
}

// Target reports the last connection target, or "" before any connect.
func (s *Session) Target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// CreateTask registers a task of the given type. The structured params
// document is re-encoded to the flat JSON text the engine expects, and the
// task is recorded in the session's registry under the engine-assigned id.
func (s *Session) CreateTask(taskType string, params json.RawMessage) (ffi.TaskID, error) {
	flat, err := flattenParams(params)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ffi.ErrInvalidHandle
	}
	id, err := s.inst.AppendTask(taskType, flat)
	if err != nil {
		return 0, err
	}
	s.tasks[id] = Task{ID: id, Type: taskType, Params: flat}
	return id, nil
}

// SetTaskParams replaces the parameters of a task previously created on
// this session. Unregistered ids fail with ErrUnknownTask before any
// foreign call is made.
func (s *Session) SetTaskParams(id ffi.TaskID, params json.RawMessage) error {
	flat, err := flattenParams(params)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ffi.ErrInvalidHandle
	}
	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTask, id)
	}
	if err := s.inst.SetTaskParams(id, flat); err != nil {
		return err
	}
	task.Params = flat
	s.tasks[id] = task
	return nil
}

// ListTasks queries the engine for the currently-live task ids and prunes
// the registry to exactly that set. Tasks the engine completed or removed
// on its own disappear from the result.
func (s *Session) ListTasks() (map[ffi.TaskID]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ffi.ErrInvalidHandle
	}
	live, err := ffi.Negotiate(s.inst.GetTaskList, s.nullSize, ffi.ProfileTasks)
	if err != nil {
		return nil, err
	}

	liveSet := make(map[ffi.TaskID]struct{}, len(live))
	for _, id := range live {
		liveSet[id] = struct{}{}
	}
	for id := range s.tasks {
		if _, ok := liveSet[id]; !ok {
			delete(s.tasks, id)
		}
	}

	out := make(map[ffi.TaskID]Task, len(s.tasks))
	for id, task := range s.tasks {
		out[id] = task
	}
	return out, nil
}

// UUID returns the device identifier, fetching it from the engine on
// first use and caching it for the session's lifetime. The engine
// documents it as immutable per handle.
func (s *Session) UUID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uuid != "" {
		return s.uuid, nil
	}
	if s.closed {
		return "", ffi.ErrInvalidHandle
	}
	raw, err := ffi.Negotiate(s.inst.GetUUID, s.nullSize, ffi.ProfileText)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", ffi.ErrEncoding
	}
	s.uuid = string(raw)
	return s.uuid, nil
}

// Screenshot returns the latest captured frame, exactly as long as the
// engine reported.
func (s *Session) Screenshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ffi.ErrInvalidHandle
	}
	return ffi.Negotiate(s.inst.GetImage, s.nullSize, ffi.ProfileImage)
}

// Screencap asks the engine to refresh its screen capture.
func (s *Session) Screencap() (ffi.CallID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ffi.ErrInvalidHandle
	}
	return s.inst.Screencap()
}

// Click issues an asynchronous click at device coordinates.
func (s *Session) Click(x, y int32) (ffi.CallID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ffi.ErrInvalidHandle
	}
	return s.inst.Click(x, y)
}

// SetOption sets a per-instance engine option.
func (s *Session) SetOption(key int32, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ffi.ErrInvalidHandle
	}
	return s.inst.SetOption(key, value)
}

// Start runs the session's appended tasks.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ffi.ErrInvalidHandle
	}
	return s.inst.Start()
}

// Stop aborts the session's running tasks.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ffi.ErrInvalidHandle
	}
	return s.inst.Stop()
}

// Running reports whether the engine instance is executing tasks.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.inst.Running()
}

// Close releases the engine handle and the callback context behind it.
// Idempotent; every operation after Close fails with ErrInvalidHandle.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.inst.Close()
}

// flattenConfig turns an optional structured config document into the flat
// text form the engine expects; absent or JSON null becomes empty.
func flattenConfig(config json.RawMessage) (string, error) {
	if len(config) == 0 || bytes.Equal(bytes.TrimSpace(config), []byte("null")) {
		return "", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, config); err != nil {
		return "", fmt.Errorf("session: invalid config document: %w", err)
	}
	return buf.String(), nil
}

// flattenParams turns a structured params document into flat JSON text;
// absent or JSON null becomes the empty object.
func flattenParams(params json.RawMessage) (string, error) {
	if len(params) == 0 || bytes.Equal(bytes.TrimSpace(params), []byte("null")) {
		return "{}", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, params); err != nil {
		return "", fmt.Errorf("session: invalid params document: %w", err)
	}
	return buf.String(), nil
}
