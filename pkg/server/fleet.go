package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
)

// createNode handles POST /api/nodes requests.
func (s *Server) createNode(ctx echo.Context) error {
	var node models.Node
	if err := ctx.Bind(&node); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	created, err := s.c.Fleet.CreateNode(node)
	if err != nil {
		return writeError(ctx, err)
	}

	log.Info().Int64("node_id", created.ID).Str("name", created.Name).Msg("Node registered")
	return ctx.JSON(http.StatusCreated, created)
}

// listNodes handles GET /api/nodes requests.
func (s *Server) listNodes(ctx echo.Context) error {
	nodes, err := s.c.Fleet.ListNodes()
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{"nodes": nodes})
}

// getNode handles GET /api/nodes/{id} requests.
func (s *Server) getNode(ctx echo.Context) error {
	nodeID, err := pathID(ctx)
	if err != nil {
		return err
	}

	node, err := s.c.Fleet.GetNode(nodeID)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, node)
}

// updateNode handles PUT /api/nodes/{id} requests.
func (s *Server) updateNode(ctx echo.Context) error {
	nodeID, err := pathID(ctx)
	if err != nil {
		return err
	}

	var node models.Node
	if err := ctx.Bind(&node); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	node.ID = nodeID

	if err := s.c.Fleet.UpdateNode(node); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, node)
}

// deleteNode handles DELETE /api/nodes/{id} requests.
func (s *Server) deleteNode(ctx echo.Context) error {
	nodeID, err := pathID(ctx)
	if err != nil {
		return err
	}

	if err := s.c.Fleet.DeleteNode(nodeID); err != nil {
		return writeError(ctx, err)
	}

	log.Info().Int64("node_id", nodeID).Msg("Node removed")
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Node deleted"})
}

// listNodeStatuses handles GET /api/nodes/status requests.
func (s *Server) listNodeStatuses(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"statuses": s.c.Monitor.AllStatuses(),
	})
}

// getNodeStatus handles GET /api/nodes/{id}/status requests.
func (s *Server) getNodeStatus(ctx echo.Context) error {
	nodeID, err := pathID(ctx)
	if err != nil {
		return err
	}

	if _, err := s.c.Fleet.GetNode(nodeID); err != nil {
		return writeError(ctx, err)
	}

	status, ok := s.c.Monitor.NodeStatus(nodeID)
	if !ok {
		// Registered but not yet checked.
		status = models.NodeStatus{NodeID: nodeID, Online: true}
	}
	return ctx.JSON(http.StatusOK, status)
}
