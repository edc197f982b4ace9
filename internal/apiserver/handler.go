// handler.go — REST handlers over the thread registry.
package apiserver

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/comppolicylab/pingpong-sub002/internal/store"
	"github.com/comppolicylab/pingpong-sub002/internal/thread"
	apperrors "github.com/comppolicylab/pingpong-sub002/pkg/errors"
	"github.com/comppolicylab/pingpong-sub002/pkg/util"
)

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")

	threads := api.Group("/threads/:id")
	threads.GET("/messages", s.getMessages)
	threads.GET("/state", s.getState)
	threads.POST("/messages", s.postMessage)
	threads.POST("/fetch-more", s.fetchMore)
	threads.POST("/results/:kind", s.fetchResult)
	threads.POST("/publish", s.publish)
	threads.POST("/unpublish", s.unpublish)
	threads.POST("/dismiss-error", s.dismissError)
	threads.GET("/events", s.sseHandler)
	api.DELETE("/threads/:id", s.deleteThread)

	api.GET("/system-log", s.listSystemLog)
}

// openManager resolves (or lazily opens) the manager for the path id and
// hooks its change feed into the SSE bus.
func (s *Server) openManager(c *gin.Context) (*thread.Manager, bool) {
	threadID := c.Param("id")
	m, err := s.registry.Open(c.Request.Context(), threadID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			notFound(c, "thread not found")
		} else {
			serverError(c, err)
		}
		return nil, false
	}
	s.watch(m)
	return m, true
}

func (s *Server) getMessages(c *gin.Context) {
	m, ok := s.openManager(c)
	if !ok {
		return
	}
	snap := m.Snapshot()
	success(c, gin.H{"messages": snap.Messages, "participants": snap.Participants})
}

func (s *Server) getState(c *gin.Context) {
	m, ok := s.openManager(c)
	if !ok {
		return
	}
	snap := m.Snapshot()
	snap.Messages = nil
	success(c, snap)
}

func (s *Server) postMessage(c *gin.Context) {
	m, ok := s.openManager(c)
	if !ok {
		return
	}
	var req thread.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	// The send consumes the whole chunk stream; run it in the background
	// and let the client follow progress over the SSE feed.
	accept := make(chan thread.SendResult, 1)
	util.SafeGo(func() {
		m.PostMessage(m.Context(), req, func(res thread.SendResult) {
			select {
			case accept <- res:
			default:
			}
		})
	})

	res := <-accept
	if !res.OK && res.Err != nil && res.Err.Kind == thread.KindValidation {
		badRequest(c, "validation", res.Err.Detail)
		return
	}
	accepted(c, gin.H{"ok": res.OK, "error": res.Err})
}

func (s *Server) fetchMore(c *gin.Context) {
	m, ok := s.openManager(c)
	if !ok {
		return
	}
	m.FetchMore(c.Request.Context())
	success(c, m.Snapshot())
}

// fetchResult dispatches the per-kind result loaders.
func (s *Server) fetchResult(c *gin.Context) {
	m, ok := s.openManager(c)
	if !ok {
		return
	}
	var req struct {
		RunID  string `json:"run_id"`
		StepID string `json:"step_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.StepID == "" {
		badRequest(c, "invalid_body", "run_id and step_id required")
		return
	}
	ctx := c.Request.Context()
	switch c.Param("kind") {
	case "code-interpreter":
		m.FetchCodeInterpreterResult(ctx, req.RunID, req.StepID)
	case "file-search":
		m.FetchFileSearchResult(ctx, req.RunID, req.StepID)
	case "web-search":
		m.FetchWebSearchResult(ctx, req.RunID, req.StepID)
	case "mcp":
		m.FetchMCPResult(ctx, req.RunID, req.StepID)
	default:
		badRequest(c, "invalid_kind", "unknown result kind")
		return
	}
	success(c, m.Snapshot())
}

func (s *Server) publish(c *gin.Context) {
	m, ok := s.openManager(c)
	if !ok {
		return
	}
	m.Publish(c.Request.Context())
	success(c, m.Snapshot())
}

func (s *Server) unpublish(c *gin.Context) {
	m, ok := s.openManager(c)
	if !ok {
		return
	}
	m.Unpublish(c.Request.Context())
	success(c, m.Snapshot())
}

func (s *Server) dismissError(c *gin.Context) {
	m, ok := s.openManager(c)
	if !ok {
		return
	}
	m.DismissError()
	success(c, m.Snapshot())
}

func (s *Server) deleteThread(c *gin.Context) {
	m, ok := s.openManager(c)
	if !ok {
		return
	}
	m.Delete(c.Request.Context())
	snap := m.Snapshot()
	if snap.LastError == nil {
		s.registry.Dispose(m.ThreadID())
	}
	success(c, gin.H{"deleted": snap.LastError == nil, "error": snap.LastError})
}

func (s *Server) listSystemLog(c *gin.Context) {
	if s.sysLog == nil {
		notFound(c, "system log store not configured")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	items, err := s.sysLog.List(c.Request.Context(), store.LogListParams{
		Level:    c.Query("level"),
		Source:   c.Query("source"),
		ThreadID: c.Query("thread_id"),
		RunID:    c.Query("run_id"),
		Keyword:  c.Query("keyword"),
		Limit:    limit,
	})
	if err != nil {
		serverError(c, err)
		return
	}
	success(c, items)
}
