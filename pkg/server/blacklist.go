package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"streamctl/pkg/blacklist"
	"streamctl/pkg/log"
	"streamctl/pkg/models"
)

// listBlacklist handles GET /api/blacklist requests.
func (s *Server) listBlacklist(ctx echo.Context) error {
	entries, err := s.c.Blacklist.List()
	if err != nil {
		return writeError(ctx, err)
	}
	if entries == nil {
		entries = []models.BlockedIP{}
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{"blocked": entries})
}

// blockIP handles POST /api/blacklist requests.
func (s *Server) blockIP(ctx echo.Context) error {
	var request blacklist.BlockRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	entry, err := s.c.Blacklist.Block(request)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, entry)
}

// unblockEntry handles DELETE /api/blacklist/{id} requests.
func (s *Server) unblockEntry(ctx echo.Context) error {
	entryID, err := pathID(ctx)
	if err != nil {
		return err
	}

	if err := s.c.Blacklist.Unblock(entryID); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Entry removed"})
}

// unblockAddress handles DELETE /api/blacklist/address/{ip} requests:
// remove every block for the address in one call.
func (s *Server) unblockAddress(ctx echo.Context) error {
	address := ctx.Param("ip")

	removed, err := s.c.Blacklist.UnblockAddress(address)
	if err != nil {
		return writeError(ctx, err)
	}

	log.Info().Str("ip", address).Int64("removed", removed).Msg("Address unblocked")
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"message": "Address unblocked",
		"removed": removed,
	})
}

// getBlacklistStats handles GET /api/blacklist/stats requests.
func (s *Server) getBlacklistStats(ctx echo.Context) error {
	stats, err := s.c.Blacklist.Stats()
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, stats)
}

// checkBlacklist handles GET /api/blacklist/check requests. Nodes call
// this on viewer connect to decide whether to accept the session.
func (s *Server) checkBlacklist(ctx echo.Context) error {
	address := ctx.QueryParam("ip")
	if address == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "ip is required"})
	}

	entry, err := s.c.Blacklist.IsBlocked(address, ctx.QueryParam("path"), queryInt(ctx, "node_id"))
	if err != nil {
		return writeError(ctx, err)
	}

	response := map[string]interface{}{"blocked": entry != nil}
	if entry != nil {
		response["entry"] = entry
	}
	return ctx.JSON(http.StatusOK, response)
}
