package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"streamctl/pkg/health"
	"streamctl/pkg/log"
	"streamctl/pkg/models"
	"streamctl/pkg/sessions"
)

// createStream handles POST /api/streams requests.
func (s *Server) createStream(ctx echo.Context) error {
	var stream models.Stream
	if err := ctx.Bind(&stream); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	// The node must exist before a stream can point at it.
	if _, err := s.c.Fleet.GetNode(stream.NodeID); err != nil {
		return writeError(ctx, err)
	}

	created, err := s.c.Streams.CreateStream(stream)
	if err != nil {
		return writeError(ctx, err)
	}

	log.Info().
		Int64("stream_id", created.ID).
		Str("path", created.Path).
		Int64("node_id", created.NodeID).
		Msg("Stream registered")
	return ctx.JSON(http.StatusCreated, created)
}

// listStreams handles GET /api/streams requests.
func (s *Server) listStreams(ctx echo.Context) error {
	filters := health.ListFilters{
		NodeID:  queryInt(ctx, "node_id"),
		Status:  models.StreamStatus(ctx.QueryParam("status")),
		Search:  ctx.QueryParam("search"),
		Page:    int(queryInt(ctx, "page")),
		PerPage: int(queryInt(ctx, "per_page")),
	}

	streams, total, err := s.c.Streams.ListStreams(filters)
	if err != nil {
		return writeError(ctx, err)
	}
	if streams == nil {
		streams = []models.Stream{}
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"streams": streams,
		"total":   total,
	})
}

// getStream handles GET /api/streams/{id} requests.
func (s *Server) getStream(ctx echo.Context) error {
	streamID, err := pathID(ctx)
	if err != nil {
		return err
	}

	stream, err := s.c.Streams.GetStream(streamID)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, stream)
}

// updateStream handles PUT /api/streams/{id} requests.
func (s *Server) updateStream(ctx echo.Context) error {
	streamID, err := pathID(ctx)
	if err != nil {
		return err
	}

	stream, err := s.c.Streams.GetStream(streamID)
	if err != nil {
		return writeError(ctx, err)
	}
	if err := ctx.Bind(stream); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	stream.ID = streamID

	if err := s.c.Streams.UpdateStream(*stream); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, stream)
}

// deleteStream handles DELETE /api/streams/{id} requests.
func (s *Server) deleteStream(ctx echo.Context) error {
	streamID, err := pathID(ctx)
	if err != nil {
		return err
	}

	if err := s.c.Streams.DeleteStream(streamID); err != nil {
		return writeError(ctx, err)
	}
	s.c.Registry.Forget(streamID)

	log.Info().Int64("stream_id", streamID).Msg("Stream removed")
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Stream deleted"})
}

// getPlaybackURLs handles GET /api/streams/{id}/playback requests. The
// URLs are derived from the owning node's addresses; nothing is stored.
func (s *Server) getPlaybackURLs(ctx echo.Context) error {
	streamID, err := pathID(ctx)
	if err != nil {
		return err
	}

	stream, err := s.c.Streams.GetStream(streamID)
	if err != nil {
		return writeError(ctx, err)
	}
	node, err := s.c.Fleet.GetNode(stream.NodeID)
	if err != nil {
		return writeError(ctx, err)
	}

	urls := map[string]string{}
	if node.HLSBaseURL != "" {
		urls["hls"] = strings.TrimRight(node.HLSBaseURL, "/") + "/" + stream.Path + "/index.m3u8"
	}
	if host := controlHost(node.ControlBaseURL); host != "" {
		urls["rtsp"] = fmt.Sprintf("rtsp://%s:8554/%s", host, stream.Path)
		urls["rtmp"] = fmt.Sprintf("rtmp://%s:1935/%s", host, stream.Path)
		urls["srt"] = fmt.Sprintf("srt://%s:8890?streamid=read:%s", host, stream.Path)
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"stream_id": stream.ID,
		"path":      stream.Path,
		"urls":      urls,
	})
}

// listStreamSessions handles GET /api/streams/{id}/sessions requests.
func (s *Server) listStreamSessions(ctx echo.Context) error {
	streamID, err := pathID(ctx)
	if err != nil {
		return err
	}

	stream, err := s.c.Streams.GetStream(streamID)
	if err != nil {
		return writeError(ctx, err)
	}

	list, err := s.c.Sessions.List(ctx.Request().Context(), sessions.Filters{
		NodeID: stream.NodeID,
		Path:   stream.Path,
	})
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, list)
}

// remediateStream handles POST /api/streams/{id}/remediate requests.
// The run is synchronous: the response carries the full outcome.
func (s *Server) remediateStream(ctx echo.Context) error {
	streamID, err := pathID(ctx)
	if err != nil {
		return err
	}

	outcome, err := s.c.Remediation.Remediate(ctx.Request().Context(), streamID)
	if err != nil && outcome == nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, outcome)
}

// controlHost extracts the hostname from a node's control URL.
func controlHost(controlBaseURL string) string {
	parsed, err := url.Parse(controlBaseURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
