// Package apiserver exposes the reconciliation engine to UI consumers over
// HTTP: derived thread views, the operation set, a system-log query and an
// SSE feed of store changes.
package apiserver

import (
	"github.com/gin-gonic/gin"

	"github.com/comppolicylab/pingpong-sub002/internal/store"
	"github.com/comppolicylab/pingpong-sub002/internal/thread"
)

// Server is the HTTP surface over the thread registry.
type Server struct {
	router   *gin.Engine
	registry *thread.Registry
	bus      *EventBus
	sysLog   *store.SystemLogStore // nil when no database is configured
}

// NewServer wires the router. sysLog may be nil.
func NewServer(registry *thread.Registry, sysLog *store.SystemLogStore) *Server {
	r := gin.Default()
	s := &Server{router: r, registry: registry, bus: NewEventBus(), sysLog: sysLog}
	s.registerRoutes()
	return s
}

// Engine returns the gin engine.
func (s *Server) Engine() *gin.Engine { return s.router }

// Bus returns the SSE event bus.
func (s *Server) Bus() *EventBus { return s.bus }

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error { return s.router.Run(addr) }
