package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"streamctl/pkg/models"
	"streamctl/pkg/sessions"
)

// listSessions handles GET /api/sessions requests. Sessions are read
// live from the nodes; unreachable nodes show up in node_errors.
func (s *Server) listSessions(ctx echo.Context) error {
	filters := sessions.Filters{
		NodeID:   queryInt(ctx, "node_id"),
		Protocol: models.Protocol(ctx.QueryParam("protocol")),
		Path:     ctx.QueryParam("path"),
	}

	list, err := s.c.Sessions.List(ctx.Request().Context(), filters)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, list)
}

type kickRequest struct {
	NodeID    int64           `json:"node_id"`
	Protocol  models.Protocol `json:"protocol"`
	SessionID string          `json:"session_id"`
}

// kickSession handles POST /api/sessions/kick requests.
func (s *Server) kickSession(ctx echo.Context) error {
	var request kickRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := s.c.Sessions.Kick(ctx.Request().Context(), request.NodeID, request.Protocol, request.SessionID); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Session kicked"})
}
