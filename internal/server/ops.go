package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zainabsaad99/EECE798S-Project/internal/runtime"
	"github.com/zainabsaad99/EECE798S-Project/internal/telemetry"
)

// OpsHandler exposes operational endpoints (performance summaries, dashboard).
type OpsHandler struct {
	tel *telemetry.Telemetry
}

func NewOpsHandler(tel *telemetry.Telemetry) *OpsHandler { return &OpsHandler{tel: tel} }

func (h *OpsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("/performance", h.performance)
	g.GET("/dashboard", h.dashboard)
}

// performance returns run, tool and LLM cost metrics.
//
//	@Summary	Performance metrics and summaries
//	@Tags		ops
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/api/ops/performance [get]
func (h *OpsHandler) performance(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"metrics": h.tel.GetMetrics(),
		"costs":   h.tel.GetCostSummary(),
		"report":  h.tel.GetPerformanceReport(),
	})
}

// dashboard renders a minimal HTML view of the same metrics without JS.
func (h *OpsHandler) dashboard(c echo.Context) error {
	metrics := h.tel.GetMetrics()
	costs := h.tel.GetCostSummary()
	report := h.tel.GetPerformanceReport()

	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset=\"utf-8\"><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"><title>Ops Dashboard</title></head><body style=\"font-family:system-ui,-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif; color:#e5e7eb; background:#0f172a;\">")
	b.WriteString("<div style=\"max-width:960px;margin:24px auto;padding:0 16px\">")
	b.WriteString("<h1 style=\"font-size:18px;font-weight:600;margin-bottom:8px\">Operations Dashboard</h1>")
	b.WriteString("<pre style=\"background:#0b1220;border:1px solid #1f2937;border-radius:8px;padding:12px;overflow:auto\"><code>")
	if body, err := json.MarshalIndent(metrics, "", "  "); err == nil {
		b.Write(body)
	}
	b.WriteString("</code></pre>")
	b.WriteString("<h2 style=\"font-size:14px;font-weight:600;margin:16px 0 8px\">Costs</h2>")
	b.WriteString("<pre style=\"background:#0b1220;border:1px solid #1f2937;border-radius:8px;padding:12px;overflow:auto\"><code>")
	if body, err := json.MarshalIndent(costs, "", "  "); err == nil {
		b.Write(body)
	}
	b.WriteString("</code></pre>")
	if report != "" {
		b.WriteString("<h2 style=\"font-size:14px;font-weight:600;margin:16px 0 8px\">Report</h2>")
		b.WriteString("<pre style=\"background:#0b1220;border:1px solid #1f2937;border-radius:8px;padding:12px;overflow:auto\">")
		b.WriteString(template.HTMLEscapeString(report))
		b.WriteString("</pre>")
	}
	b.WriteString("</div></body></html>")
	return c.HTML(http.StatusOK, b.String())
}
