package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type configRequest struct {
	NodeID    *int64 `json:"node_id"`
	Body      string `json:"body"`
	Notes     string `json:"notes"`
	AppliedBy string `json:"applied_by"`
}

// planConfig handles POST /api/config/plan requests: validate and diff
// without touching any node.
func (s *Server) planConfig(ctx echo.Context) error {
	var request configRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	plan, err := s.c.Configs.Plan(request.NodeID, request.Body)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, plan)
}

// applyConfig handles POST /api/config/apply requests.
func (s *Server) applyConfig(ctx echo.Context) error {
	var request configRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	snapshot, err := s.c.Configs.Apply(ctx.Request().Context(), request.NodeID, request.Body, request.Notes, request.AppliedBy)
	if err != nil {
		// A failed push still appended an audit snapshot; the client
		// gets the error, not the half-applied record.
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, snapshot)
}

type rollbackRequest struct {
	AppliedBy string `json:"applied_by"`
}

// rollbackConfig handles POST /api/config/rollback/{id} requests.
func (s *Server) rollbackConfig(ctx echo.Context) error {
	snapshotID, err := pathID(ctx)
	if err != nil {
		return err
	}

	var request rollbackRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	snapshot, err := s.c.Configs.Rollback(ctx.Request().Context(), snapshotID, request.AppliedBy)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, snapshot)
}

// listSnapshots handles GET /api/config/snapshots requests.
func (s *Server) listSnapshots(ctx echo.Context) error {
	var nodeID *int64
	if id := queryInt(ctx, "node_id"); id > 0 {
		nodeID = &id
	}

	snapshots, err := s.c.Configs.ListSnapshots(nodeID, int(queryInt(ctx, "limit")))
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{"snapshots": snapshots})
}

// getSnapshot handles GET /api/config/snapshots/{id} requests.
func (s *Server) getSnapshot(ctx echo.Context) error {
	snapshotID, err := pathID(ctx)
	if err != nil {
		return err
	}

	snapshot, err := s.c.Configs.GetSnapshot(snapshotID)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, snapshot)
}
