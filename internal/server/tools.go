package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zainabsaad99/EECE798S-Project/internal/agent"
	"github.com/zainabsaad99/EECE798S-Project/internal/runtime"
)

// ToolsHandler exposes the sealed tool catalog the agent dispatches against.
// The catalog is fixed at startup; there is no publish path.
type ToolsHandler struct {
	Registry *agent.Registry
}

func (h *ToolsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("", h.list)
}

// list returns the tool definitions in the same shape the model sees.
//
//	@Summary	List agent tools
//	@Tags		tools
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Success	200	{array}	models.ToolDef
//	@Router		/api/tools [get]
func (h *ToolsHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Registry.DescribeAll())
}
