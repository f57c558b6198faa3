// Package debugsrv exposes a tiny read-only HTTP surface for human
// operators (spec.md SPEC_FULL §4.11): the last published info snapshot
// and the last introspection mark. It is explicitly NOT the sheriff UI —
// no write operations, no ability to issue orders — and is bound to
// loopback only.
package debugsrv

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/edirooss/procman-deputy/internal/introspect"
	"github.com/edirooss/procman-deputy/internal/wire"
)

// Source supplies the most recent snapshots the debug surface serves.
// The event loop is the only writer; Server only ever reads through
// these accessors, never touching Deputy State directly.
type Source interface {
	LastInfo() wire.Info
	LastMark() introspect.Snapshot
}

// Server is the debug HTTP surface. Concurrent requests for the same
// snapshot are coalesced via singleflight so bursts of operator polling
// never touch Source more than once per resolution window, mirroring the
// teacher's SummaryService cache-coalescing.
type Server struct {
	log    *zap.Logger
	src    Source
	group  singleflight.Group
	engine *gin.Engine
	srv    *http.Server
}

// New builds the router but does not start listening.
func New(log *zap.Logger, src Source) *Server {
	log = log.Named("debugsrv")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{}, // loopback tooling only, no cross-origin callers
		AllowMethods: []string{"GET"},
	}))

	s := &Server{log: log, src: src, engine: r}

	r.GET("/debug/commands", s.handleCommands)
	r.GET("/debug/marks", s.handleMarks)

	return s
}

func (s *Server) handleCommands(c *gin.Context) {
	v, err, _ := s.group.Do("commands", func() (any, error) {
		return s.src.LastInfo(), nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleMarks(c *gin.Context) {
	v, err, _ := s.group.Do("marks", func() (any, error) {
		return s.src.LastMark(), nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}

// Start binds addr and serves until ctx is cancelled. An addr of "" or
// "0" means the surface is disabled and Start is not invoked; the Deputy
// Shell checks that. A host:port address with port 0 is not treated as
// disabled: it binds an ephemeral port.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
		ErrorLog:     zap.NewStdLog(s.log.WithOptions(zap.AddCallerSkip(1))),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("debug http surface listening", zap.String("addr", addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
