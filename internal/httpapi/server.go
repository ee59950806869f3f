// Package httpapi exposes the agent, plain chat and task storage over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chris/tasky/internal/agent"
	"github.com/chris/tasky/internal/db"
	"github.com/chris/tasky/internal/metrics"
)

const DefaultAddr = ":4000"

type Config struct {
	Addr  string
	Debug bool
}

type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	agent      *agent.Agent
	db         *db.DB
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(cfg Config, ag *agent.Agent, database *db.DB, m *metrics.Metrics) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		engine:  engine,
		agent:   ag,
		db:      database,
		metrics: m,
		now:     time.Now,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()
	return s
}

// WithClock replaces the time source. Intended for tests.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.engine.Group("/api")
	api.GET("/ping", s.handlePing)

	ai := api.Group("/ai")
	{
		ai.POST("/agent", s.handleAgent)
		ai.POST("/chat", s.handleChat)
	}

	users := api.Group("/users")
	{
		users.POST("", s.handleCreateUser)
		users.GET("/:id", s.handleGetUser)
	}

	tasks := api.Group("/tasks")
	{
		tasks.GET("", s.handleListTasks)
		tasks.POST("", s.handleCreateTask)
		tasks.GET("/:id", s.handleGetTask)
		tasks.PATCH("/:id", s.handleUpdateTask)
		tasks.DELETE("/:id", s.handleDeleteTask)
	}

	recurring := api.Group("/recurring")
	{
		recurring.GET("", s.handleListRecurring)
		recurring.POST("", s.handleCreateRecurring)
		recurring.POST("/:id/disable", s.handleDisableRecurring)
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("http: listening on %s", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	}
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": s.now().UTC().Format(time.RFC3339)})
}
