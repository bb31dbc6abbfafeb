package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"streamctl/pkg/blacklist"
	"streamctl/pkg/configmgr"
	"streamctl/pkg/fleet"
	"streamctl/pkg/health"
	"streamctl/pkg/log"
	"streamctl/pkg/probe"
	"streamctl/pkg/remediation"
	"streamctl/pkg/retention"
	"streamctl/pkg/sessions"
)

const shutdownTimeout = 10

// Components are the control-plane services the HTTP API exposes.
type Components struct {
	Fleet       *fleet.Store
	Monitor     *fleet.Monitor
	Streams     *health.Store
	Registry    *health.Registry
	Prober      *probe.Prober
	Remediation *remediation.Engine
	Configs     *configmgr.Manager
	Retention   *retention.Engine
	Recordings  *retention.Store
	Sessions    *sessions.Registry
	Blacklist   *blacklist.Manager
}

// Server is the control-plane HTTP API.
type Server struct {
	echo    *echo.Echo
	version string
	c       Components
}

// New creates the API server over the given components.
func New(version string, components Components) *Server {
	return &Server{
		echo:    echo.New(),
		version: version,
		c:       components,
	}
}

// Start runs the server until SIGINT or SIGTERM, then shuts down
// gracefully.
func (s *Server) Start(addr string) error {
	s.setupRoutes()

	go func() {
		log.Info().
			Str("addr", addr).
			Str("version", s.version).
			Msg("Starting control plane API")

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return s.Shutdown()
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server gracefully stopped")
	return nil
}

func (s *Server) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${status} ${method} ${uri} (${latency_human})\n",
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	api := s.echo.Group("/api")

	api.GET("/status", s.getStatus)

	// Fleet directory
	api.POST("/nodes", s.createNode)
	api.GET("/nodes", s.listNodes)
	api.GET("/nodes/status", s.listNodeStatuses)
	api.GET("/nodes/:id", s.getNode)
	api.PUT("/nodes/:id", s.updateNode)
	api.DELETE("/nodes/:id", s.deleteNode)
	api.GET("/nodes/:id/status", s.getNodeStatus)

	// Streams
	api.POST("/streams", s.createStream)
	api.GET("/streams", s.listStreams)
	api.GET("/streams/:id", s.getStream)
	api.PUT("/streams/:id", s.updateStream)
	api.DELETE("/streams/:id", s.deleteStream)
	api.GET("/streams/:id/playback", s.getPlaybackURLs)
	api.GET("/streams/:id/sessions", s.listStreamSessions)
	api.POST("/streams/:id/probe", s.probeStream)
	api.POST("/streams/:id/remediate", s.remediateStream)

	// Ad-hoc probe
	api.POST("/probe", s.probeURL)

	// Recordings and retention
	api.POST("/recordings", s.registerRecording)
	api.GET("/recordings", s.listRecordings)
	api.GET("/recordings/:id", s.getRecording)
	api.POST("/recordings/:id/archive", s.archiveRecording)
	api.DELETE("/recordings/:id", s.deleteRecording)
	api.GET("/retention/status", s.getRetentionStatus)
	api.POST("/retention/cleanup", s.runCleanup)

	// Live sessions
	api.GET("/sessions", s.listSessions)
	api.POST("/sessions/kick", s.kickSession)

	// Config lifecycle
	api.POST("/config/plan", s.planConfig)
	api.POST("/config/apply", s.applyConfig)
	api.POST("/config/rollback/:id", s.rollbackConfig)
	api.GET("/config/snapshots", s.listSnapshots)
	api.GET("/config/snapshots/:id", s.getSnapshot)

	// Blacklist
	api.GET("/blacklist", s.listBlacklist)
	api.POST("/blacklist", s.blockIP)
	api.DELETE("/blacklist/:id", s.unblockEntry)
	api.DELETE("/blacklist/address/:ip", s.unblockAddress)
	api.GET("/blacklist/stats", s.getBlacklistStats)
	api.GET("/blacklist/check", s.checkBlacklist)
}

// getStatus handles GET /api/status requests.
func (s *Server) getStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}
