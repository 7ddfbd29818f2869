// Package api exposes the task board over HTTP for the web dashboard.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/assign"
	"github.com/nhle/hotel-ops/internal/board"
	"github.com/nhle/hotel-ops/internal/draft"
	"github.com/nhle/hotel-ops/internal/reminder"
	"github.com/nhle/hotel-ops/internal/store"
)

// Deps are the collaborators the API handlers call into.
type Deps struct {
	Store       store.Store
	Coordinator *board.Coordinator
	Merger      *assign.Merger
	Reminders   *reminder.Buffer
	Drafts      draft.Cache
	Logger      *zap.SugaredLogger
}

// Server is the HTTP API.
type Server struct {
	store     store.Store
	coord     *board.Coordinator
	merger    *assign.Merger
	reminders *reminder.Buffer
	drafts    draft.Cache
	logger    *zap.SugaredLogger

	engine *gin.Engine

	mu   sync.Mutex
	http *http.Server
}

// New builds the server and registers its routes.
func New(d Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:     d.Store,
		coord:     d.Coordinator,
		merger:    d.Merger,
		reminders: d.Reminders,
		drafts:    d.Drafts,
		logger:    d.Logger,
	}

	r := gin.New()
	r.Use(RequestLogger(d.Logger), Recovery(d.Logger))
	s.registerRoutes(r)
	s.engine = r
	return s
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/tasks", s.listTasks)
		v1.POST("/tasks", s.createTask)
		v1.GET("/tasks/:id", s.getTask)
		v1.PATCH("/tasks/:id/status", s.moveTask)
		v1.POST("/tasks/:id/assignees", s.assignMembers)
		v1.POST("/tasks/:id/reminder", s.setReminder)
		v1.GET("/tasks/:id/notifications", s.listNotifications)

		v1.POST("/reminders/drafts", s.createDraft)

		v1.GET("/users", s.listUsers)
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.logger.Infow("api listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving api on %s: %w", addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) health(c *gin.Context) {
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(c.Request.Context()); err != nil {
			s.logger.Warnw("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
