package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
	"streamctl/pkg/retention"
)

// registerRecording handles POST /api/recordings requests. Nodes (or a
// sidecar watching their recording directories) report completed
// segments here.
func (s *Server) registerRecording(ctx echo.Context) error {
	var recording models.Recording
	if err := ctx.Bind(&recording); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if recording.SegmentType == "" {
		recording.SegmentType = models.SegmentContinuous
	}

	created, err := s.c.Recordings.Register(recording)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, created)
}

// listRecordings handles GET /api/recordings requests.
func (s *Server) listRecordings(ctx echo.Context) error {
	filters := retention.ListFilters{
		StreamID:    queryInt(ctx, "stream_id"),
		SegmentType: models.SegmentType(ctx.QueryParam("segment_type")),
		Page:        int(queryInt(ctx, "page")),
		PerPage:     int(queryInt(ctx, "per_page")),
	}
	if archived := ctx.QueryParam("archived"); archived != "" {
		value := archived == "true"
		filters.Archived = &value
	}

	recordings, total, err := s.c.Recordings.List(filters)
	if err != nil {
		return writeError(ctx, err)
	}
	if recordings == nil {
		recordings = []models.Recording{}
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"recordings": recordings,
		"total":      total,
	})
}

// getRecording handles GET /api/recordings/{id} requests.
func (s *Server) getRecording(ctx echo.Context) error {
	recordingID, err := pathID(ctx)
	if err != nil {
		return err
	}

	recording, err := s.c.Recordings.Get(recordingID)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, recording)
}

// archiveRecording handles POST /api/recordings/{id}/archive requests.
func (s *Server) archiveRecording(ctx echo.Context) error {
	recordingID, err := pathID(ctx)
	if err != nil {
		return err
	}

	if err := s.c.Retention.Archive(recordingID); err != nil {
		return writeError(ctx, err)
	}

	log.Info().Int64("recording_id", recordingID).Msg("Recording archived")
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Recording archived"})
}

// deleteRecording handles DELETE /api/recordings/{id} requests. Only
// metadata is removed; the segment file stays on disk.
func (s *Server) deleteRecording(ctx echo.Context) error {
	recordingID, err := pathID(ctx)
	if err != nil {
		return err
	}

	if err := s.c.Recordings.Delete(recordingID); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Recording deleted"})
}

// getRetentionStatus handles GET /api/retention/status requests.
func (s *Server) getRetentionStatus(ctx echo.Context) error {
	status, err := s.c.Retention.Status()
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, status)
}

// runCleanup handles POST /api/retention/cleanup requests. Pass
// dry_run=true to see what a sweep would delete without touching
// anything.
func (s *Server) runCleanup(ctx echo.Context) error {
	dryRun := ctx.QueryParam("dry_run") == "true"

	result, err := s.c.Retention.RunCleanup(ctx.Request().Context(), dryRun)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, result)
}
