package handler

import (
	"net/http"

	"github.com/dafibh/fortuna/fortuna-client/internal/orchestrator"
	"github.com/labstack/echo/v4"
)

// StatusReporter exposes per-resource load state
type StatusReporter interface {
	Status(res orchestrator.Resource) orchestrator.Status
}

// StatusHandler reports health and resource state
type StatusHandler struct {
	reporter StatusReporter
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(reporter StatusReporter) *StatusHandler {
	return &StatusHandler{reporter: reporter}
}

// ResourceStatusResponse is one resource in GET /api/v1/status
type ResourceStatusResponse struct {
	State     orchestrator.State `json:"state"`
	InFlight  int                `json:"inFlight"`
	Loaded    bool               `json:"loaded"`
	LastError string             `json:"lastError,omitempty"`
}

var reportedResources = []orchestrator.Resource{
	orchestrator.ResourceCategories,
	orchestrator.ResourceIncomeCategories,
	orchestrator.ResourceExpenseCategories,
	orchestrator.ResourceIncomes,
	orchestrator.ResourceExpenses,
	orchestrator.ResourceDashboard,
}

// Health handles GET /health
func (h *StatusHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GetStatus handles GET /api/v1/status
func (h *StatusHandler) GetStatus(c echo.Context) error {
	out := make(map[orchestrator.Resource]ResourceStatusResponse, len(reportedResources))
	for _, res := range reportedResources {
		st := h.reporter.Status(res)
		resp := ResourceStatusResponse{State: st.State, InFlight: st.InFlight, Loaded: st.Loaded}
		if st.LastError != nil {
			resp.LastError = st.LastError.Error()
		}
		out[res] = resp
	}
	return c.JSON(http.StatusOK, out)
}
