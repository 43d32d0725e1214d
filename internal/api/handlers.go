package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maasd/maasd/internal/ffi"
	"github.com/maasd/maasd/internal/observability"
	"github.com/maasd/maasd/internal/session"
)

func (s *Server) registerRoutes() {
	e := s.engine

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/version", s.handleVersion)

	e.POST("/instances", s.handleCreateInstance)
	e.GET("/instances", s.handleListInstances)
	e.DELETE("/instances/:id", s.handleDeleteInstance)

	e.POST("/connect/:id/attach", s.handleAttach)
	e.POST("/connect/:id/target", s.handleTarget)

	e.GET("/tasks/:id", s.handleListTasks)
	e.POST("/tasks/:id", s.handleCreateTask)
	e.PUT("/tasks/:id", s.handleSetTaskParams)

	e.POST("/run/:id/start", s.handleStart)
	e.POST("/run/:id/stop", s.handleStop)
	e.GET("/run/:id", s.handleRunning)

	e.POST("/device/:id/click", s.handleClick)
	e.POST("/device/:id/screenshot", s.handleScreencap)
	e.GET("/device/:id/screenshot", s.handleScreenshot)

	e.GET("/uuid", s.handleKnownDevices)
	e.GET("/uuid/:id", s.handleUUID)

	e.GET("/message/:uuid", s.handleMessages)
	e.DELETE("/message/:uuid", s.handleDropMessages)
}

// sessionFor resolves the :id route parameter to a live session, writing
// the error response itself when it cannot.
func (s *Server) sessionFor(c *gin.Context) (*session.Session, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, fmt.Errorf("%w: instance id must be numeric", errBadRequest))
		return nil, false
	}
	sess, ok := s.manager.Get(id)
	if !ok {
		respondError(c, fmt.Errorf("%w: %d", session.ErrNotFound, id))
		return nil, false
	}
	return sess, true
}

// bindJSON decodes the request body, mapping decode failures to a 400.
func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

// validDocument rejects request fields that must hold a JSON document
// before they reach the engine.
func validDocument(c *gin.Context, field string, doc json.RawMessage) bool {
	if len(doc) != 0 && !json.Valid(doc) {
		respondError(c, fmt.Errorf("%w: %s is not valid JSON", errBadRequest, field))
		return false
	}
	return true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.started).String(),
		"instances": len(s.manager.IDs()),
	})
}

func (s *Server) handleVersion(c *gin.Context) {
	version, err := s.surface.Version()
	observability.RecordEngineCall("version", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version})
}

func (s *Server) handleCreateInstance(c *gin.Context) {
	id, err := s.manager.Create()
	observability.RecordEngineCall("create", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleListInstances(c *gin.Context) {
	ids := s.manager.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	c.JSON(http.StatusOK, gin.H{"instances": ids})
}

func (s *Server) handleDeleteInstance(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, fmt.Errorf("%w: instance id must be numeric", errBadRequest))
		return
	}
	sess, ok := s.manager.Delete(id)
	if !ok {
		respondError(c, fmt.Errorf("%w: %d", session.ErrNotFound, id))
		return
	}
	err = sess.Close()
	observability.RecordEngineCall("destroy", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type attachRequest struct {
	AdbPath string          `json:"adb_path"`
	Address string          `json:"address"`
	Config  json.RawMessage `json:"config"`
}

func (s *Server) handleAttach(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	var req attachRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Address == "" {
		respondError(c, fmt.Errorf("%w: address is required", errBadRequest))
		return
	}
	if !validDocument(c, "config", req.Config) {
		return
	}
	callID, err := sess.Connect(req.AdbPath, req.Address, req.Config)
	observability.RecordEngineCall("connect", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID})
}

func (s *Server) handleTarget(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": sess.Target()})
}

func (s *Server) handleListTasks(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	tasks, err := sess.ListTasks()
	observability.RecordEngineCall("get_tasks_list", err)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]session.Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

type createTaskRequest struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	var req createTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Type == "" {
		respondError(c, fmt.Errorf("%w: type is required", errBadRequest))
		return
	}
	if !validDocument(c, "params", req.Params) {
		return
	}
	taskID, err := sess.CreateTask(req.Type, req.Params)
	observability.RecordEngineCall("append_task", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task_id": taskID})
}

type setTaskParamsRequest struct {
	TaskID int32           `json:"task_id"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) handleSetTaskParams(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	var req setTaskParamsRequest
	if !bindJSON(c, &req) {
		return
	}
	if !validDocument(c, "params", req.Params) {
		return
	}
	err := sess.SetTaskParams(ffi.TaskID(req.TaskID), req.Params)
	observability.RecordEngineCall("set_task_params", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStart(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	err := sess.Start()
	observability.RecordEngineCall("start", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStop(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	err := sess.Stop()
	observability.RecordEngineCall("stop", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRunning(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": sess.Running()})
}

type clickRequest struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

func (s *Server) handleClick(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	var req clickRequest
	if !bindJSON(c, &req) {
		return
	}
	callID, err := sess.Click(req.X, req.Y)
	observability.RecordEngineCall("click", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID})
}

func (s *Server) handleScreencap(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	callID, err := sess.Screencap()
	observability.RecordEngineCall("screencap", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID})
}

func (s *Server) handleScreenshot(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	img, err := sess.Screenshot()
	observability.RecordEngineCall("get_image", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

func (s *Server) handleKnownDevices(c *gin.Context) {
	uuids, err := s.store.Partitions()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uuids": uuids})
}

func (s *Server) handleUUID(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	uuid, err := sess.UUID()
	observability.RecordEngineCall("get_uuid", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uuid": uuid})
}

// message is one stored engine event as served over HTTP. The body is
// emitted verbatim: the router only stores payloads that parsed as JSON.
type message struct {
	Seq     uint64          `json:"seq"`
	Time    int64           `json:"time"`
	Kind    int32           `json:"kind"`
	Details json.RawMessage `json:"details"`
}

const defaultMessageCount = 100

func (s *Server) handleMessages(c *gin.Context) {
	uuid := c.Param("uuid")
	n := defaultMessageCount
	if raw := c.Query("nums"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			respondError(c, fmt.Errorf("%w: nums must be a positive integer", errBadRequest))
			return
		}
		n = v
	}

	events, err := s.store.ReadLast(uuid, n)
	if err != nil {
		respondError(c, err)
		return
	}
	msgs := make([]message, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, message{
			Seq:     ev.Seq,
			Time:    ev.Time,
			Kind:    ev.Kind,
			Details: json.RawMessage(ev.Body),
		})
	}
	c.JSON(http.StatusOK, gin.H{"uuid": uuid, "messages": msgs})
}

func (s *Server) handleDropMessages(c *gin.Context) {
	uuid := c.Param("uuid")
	if err := s.store.DropPartition(uuid); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
