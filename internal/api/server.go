// Package api exposes the daemon over HTTP: instance lifecycle, device
// connection, task management, device queries, and the stored event
// stream. Every response body is JSON except the raw screenshot bytes.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/maasd/maasd/internal/eventlog"
	"github.com/maasd/maasd/internal/ffi"
	"github.com/maasd/maasd/internal/observability"
	"github.com/maasd/maasd/internal/session"
)

// MessageStore is the slice of the event-log store the HTTP layer reads
// from: stored messages and the set of devices that ever produced one.
type MessageStore interface {
	ReadLast(partition string, n int) ([]eventlog.Event, error)
	DropPartition(partition string) error
	Partitions() ([]string, error)
}

// Server wires the engine surface, the session manager and the message
// store into one gin router.
type Server struct {
	surface ffi.Surface
	manager *session.Manager
	store   MessageStore

	engine  *gin.Engine
	started time.Time
}

func New(surface ffi.Surface, manager *session.Manager, store MessageStore) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		observability.RequestLogger(log.Logger),
		observability.RequestMetrics(),
	)

	s := &Server{
		surface: surface,
		manager: manager,
		store:   store,
		engine:  engine,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router for serving and for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Run blocks serving HTTP on addr until the listener fails.
func (s *Server) Run(addr string) error {
	log.Info().Str("addr", addr).Msg("http server starting")
	return s.engine.Run(addr)
}
