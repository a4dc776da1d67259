package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardWarmup recomputes the cached dashboard metrics.
	TaskDashboardWarmup = "analytics:dashboard_warmup"
	// DashboardWarmupCron schedules the warmup every ten minutes.
	DashboardWarmupCron = "*/10 * * * *"
)

// DashboardWarmupPayload parameterises a warmup run. Zero values select the
// dashboard defaults.
type DashboardWarmupPayload struct {
	TrendMonths int    `json:"trend_months,omitempty"`
	VendorLimit int    `json:"vendor_limit,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// NewDashboardWarmupTask builds a warmup task.
func NewDashboardWarmupTask(payload DashboardWarmupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, body, asynq.Queue(QueueDefault)), nil
}
