package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// probeStream handles POST /api/streams/{id}/probe requests. The
// result feeds the health state machine exactly like a scheduled
// sweep, so an on-demand probe can trigger auto-remediation too.
func (s *Server) probeStream(ctx echo.Context) error {
	streamID, err := pathID(ctx)
	if err != nil {
		return err
	}

	stream, err := s.c.Streams.GetStream(streamID)
	if err != nil {
		return writeError(ctx, err)
	}

	result := s.c.Prober.ProbeStream(ctx.Request().Context(), *stream)
	status, err := s.c.Registry.RecordProbe(streamID, result)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"stream_id": streamID,
		"status":    status,
		"result":    result,
	})
}

type probeURLRequest struct {
	URL      string `json:"url"`
	Protocol string `json:"protocol"`
}

// probeURL handles POST /api/probe requests: a one-off reachability
// probe against an arbitrary source URL, no stream registration needed.
func (s *Server) probeURL(ctx echo.Context) error {
	var request probeURLRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if request.URL == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "url is required"})
	}

	result := s.c.Prober.ProbeURL(ctx.Request().Context(), request.URL, request.Protocol)
	return ctx.JSON(http.StatusOK, result)
}
