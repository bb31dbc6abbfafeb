package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
	"streamctl/pkg/nodeclient"
)

// writeError maps component errors onto HTTP status codes. Validation
// problems are the caller's fault, unreachable nodes are a bad
// gateway, everything unexpected is a 500.
func writeError(ctx echo.Context, err error) error {
	var unreachable models.NodeUnreachableError
	var apiErr *nodeclient.APIError

	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrUnsupportedProtocol):
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrAlreadyInProgress):
		return ctx.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &unreachable), errors.As(err, &apiErr):
		log.Warn().Err(err).Msg("Upstream node request failed")
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("Request failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Internal server error",
		})
	}
}

// pathID parses the :id path parameter.
func pathID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(ctx echo.Context, name string) int64 {
	value, err := strconv.ParseInt(ctx.QueryParam(name), 10, 64)
	if err != nil {
		return 0
	}
	return value
}
