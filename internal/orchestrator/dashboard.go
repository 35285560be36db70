package orchestrator

import (
	"context"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
)

const fallbackDashboard = "Something went wrong!"

// LoadDashboard fetches GET /dashboard and publishes the summary
func (o *Orchestrator) LoadDashboard(ctx context.Context) (*domain.DashboardSummary, error) {
	return fetch(ctx, o, ResourceDashboard, fallbackDashboard, o.ledger.Dashboard, o.publishDashboard)
}

func (o *Orchestrator) publishDashboard(summary *domain.DashboardSummary) {
	o.lmu.RLock()
	defer o.lmu.RUnlock()
	for _, fn := range o.dashboardListeners {
		fn(summary)
	}
}
