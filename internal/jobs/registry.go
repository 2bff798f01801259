package jobs

import (
	"time"

	"github.com/rl1809/graphql-crm/internal/clock"
	"github.com/rl1809/graphql-crm/internal/config"
)

const (
	healthServiceName = "crm"
	probeTimeout      = 5 * time.Second
)

// NewDefaultRegistry wires every job against the configured endpoints and
// log directory.
func NewDefaultRegistry(cfg config.Config, clk clock.Clock) *Registry {
	client := NewGraphQLClient(cfg.GraphQLURL, cfg.TaskTimeout)

	var prober HealthProber
	if cfg.HealthGRPCAddr != "" {
		prober = NewGRPCProber(cfg.HealthGRPCAddr, healthServiceName, probeTimeout)
	}

	return NewRegistry(
		NewHeartbeat(client, prober, clk, NewLogFile(cfg.JobLogPath(HeartbeatLog))),
		NewLowStock(client, clk, NewLogFile(cfg.JobLogPath(LowStockLog))),
		NewReport(client, clk, NewLogFile(cfg.JobLogPath(ReportLog))),
		NewReminders(client, clk, NewLogFile(cfg.JobLogPath(RemindersLog))),
		NewPing(clk, NewLogFile(cfg.JobLogPath(PingLog))),
	)
}
