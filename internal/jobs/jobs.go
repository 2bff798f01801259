package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rl1809/graphql-crm/internal/clock"
)

// Job names, shared by the scheduler, the queue and the CLI.
const (
	NameHeartbeat = "heartbeat"
	NameLowStock  = "low_stock"
	NameReport    = "report"
	NameReminders = "reminders"
	NamePing      = "ping"
)

// Log file names inside the configured job log directory.
const (
	HeartbeatLog = "crm_heartbeat_log.txt"
	LowStockLog  = "lowstockupdates_log.txt"
	ReportLog    = "crmreportlog.txt"
	RemindersLog = "order_reminders_log.txt"
	PingLog      = "task_queue_test_log.txt"
)

const reminderWindow = 7 * 24 * time.Hour

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Registry struct {
	jobs map[string]Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{jobs: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
	return r
}

func (r *Registry) Get(name string) (Job, bool) {
	j, ok := r.jobs[name]
	return j, ok
}

// Names returns registered job names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Heartbeat records that the CRM answers. GraphQL and gRPC failures are
// written into the line rather than failing the job.
type Heartbeat struct {
	client *GraphQLClient
	prober HealthProber
	clock  clock.Clock
	log    *LogFile
}

// NewHeartbeat builds the heartbeat job; prober may be nil.
func NewHeartbeat(client *GraphQLClient, prober HealthProber, clk clock.Clock, log *LogFile) *Heartbeat {
	return &Heartbeat{client: client, prober: prober, clock: clk, log: log}
}

func (h *Heartbeat) Name() string { return NameHeartbeat }

func (h *Heartbeat) Run(ctx context.Context) error {
	line := h.clock.Now().Format("02/01/2006-15:04:05") + " CRM is alive"

	var out struct {
		Hello string `json:"hello"`
	}
	if err := h.client.Do(ctx, `query { hello }`, nil, &out); err != nil {
		line += " - GraphQL check failed: " + err.Error()
	} else {
		line += " - GraphQL hello: " + out.Hello
	}

	if h.prober != nil {
		status, err := h.prober.Probe(ctx)
		if err != nil {
			status = "check failed: " + err.Error()
		}
		line += " - gRPC: " + status
	}

	return h.log.Append(line)
}

// LowStock runs the restock mutation and records what changed.
type LowStock struct {
	client *GraphQLClient
	clock  clock.Clock
	log    *LogFile
}

func NewLowStock(client *GraphQLClient, clk clock.Clock, log *LogFile) *LowStock {
	return &LowStock{client: client, clock: clk, log: log}
}

func (j *LowStock) Name() string { return NameLowStock }

const updateLowStockMutation = `mutation {
	updateLowStockProducts {
		success
		message
		count
		updatedProducts { id name stock }
	}
}`

func (j *LowStock) Run(ctx context.Context) error {
	ts := j.clock.Now().Format("02/01/2006-15:04:05")

	var out struct {
		Update struct {
			Success  bool   `json:"success"`
			Message  string `json:"message"`
			Count    int    `json:"count"`
			Products []struct {
				Name  string `json:"name"`
				Stock int    `json:"stock"`
			} `json:"updatedProducts"`
		} `json:"updateLowStockProducts"`
	}
	if err := j.client.Do(ctx, updateLowStockMutation, nil, &out); err != nil {
		if logErr := j.log.Append(fmt.Sprintf("[%s] ERROR in update_low_stock: %s", ts, err), ""); logErr != nil {
			return logErr
		}
		return errors.Wrap(err, "update low stock products")
	}

	lines := []string{
		fmt.Sprintf("[%s] Low stock update executed", ts),
		fmt.Sprintf("Success: %t", out.Update.Success),
		"Message: " + out.Update.Message,
		fmt.Sprintf("Products updated: %d", out.Update.Count),
	}
	if len(out.Update.Products) == 0 {
		lines = append(lines, "No products were updated")
	} else {
		lines = append(lines, "Updated products:")
		for _, p := range out.Update.Products {
			lines = append(lines, fmt.Sprintf("  - %s: New stock level = %d", p.Name, p.Stock))
		}
	}
	return j.log.Append(append(lines, "")...)
}

// Report writes customer, order and revenue totals.
type Report struct {
	client *GraphQLClient
	clock  clock.Clock
	log    *LogFile
}

func NewReport(client *GraphQLClient, clk clock.Clock, log *LogFile) *Report {
	return &Report{client: client, clock: clk, log: log}
}

func (j *Report) Name() string { return NameReport }

func (j *Report) Run(ctx context.Context) error {
	var out struct {
		Customers []struct {
			ID string `json:"id"`
		} `json:"customers"`
		Orders []struct {
			ID          string          `json:"id"`
			TotalAmount decimal.Decimal `json:"totalAmount"`
		} `json:"orders"`
	}
	err := j.client.Do(ctx, `query { customers { id } orders { id totalAmount } }`, nil, &out)

	ts := j.clock.Now().Format("2006-01-02 15:04:05")
	if err != nil {
		if logErr := j.log.Append(fmt.Sprintf("%s - ERROR generating CRM report: %s", ts, err)); logErr != nil {
			return logErr
		}
		return errors.Wrap(err, "generate report")
	}

	revenue := decimal.Zero
	for _, o := range out.Orders {
		revenue = revenue.Add(o.TotalAmount)
	}
	return j.log.Append(fmt.Sprintf("%s - Report: %d customers, %d orders, %s revenue.",
		ts, len(out.Customers), len(out.Orders), revenue.StringFixed(2)))
}

// Reminders lists orders placed within the last week.
type Reminders struct {
	client *GraphQLClient
	clock  clock.Clock
	log    *LogFile
}

func NewReminders(client *GraphQLClient, clk clock.Clock, log *LogFile) *Reminders {
	return &Reminders{client: client, clock: clk, log: log}
}

func (j *Reminders) Name() string { return NameReminders }

const recentOrdersQuery = `query($since: String) {
	orders(filter: { orderDateGte: $since }) {
		id
		orderDate
		customer { email }
	}
}`

func (j *Reminders) Run(ctx context.Context) error {
	now := j.clock.Now()
	since := now.Add(-reminderWindow).Format("2006-01-02T15:04:05")

	var out struct {
		Orders []struct {
			ID       string `json:"id"`
			Customer *struct {
				Email string `json:"email"`
			} `json:"customer"`
		} `json:"orders"`
	}
	err := j.client.Do(ctx, recentOrdersQuery, map[string]interface{}{"since": since}, &out)

	ts := now.Format("2006-01-02 15:04:05")
	if err != nil {
		if logErr := j.log.Append(fmt.Sprintf("[%s] ERROR: %s", ts, err)); logErr != nil {
			return logErr
		}
		return errors.Wrap(err, "query recent orders")
	}

	if len(out.Orders) == 0 {
		return j.log.Append(fmt.Sprintf("[%s] No recent orders found for reminders", ts))
	}
	lines := make([]string, 0, len(out.Orders))
	for _, o := range out.Orders {
		email := ""
		if o.Customer != nil {
			email = o.Customer.Email
		}
		lines = append(lines, fmt.Sprintf("[%s] Order ID: %s, Customer Email: %s", ts, o.ID, email))
	}
	return j.log.Append(lines...)
}

// Ping proves a task travelled through the queue to a worker.
type Ping struct {
	clock clock.Clock
	log   *LogFile
}

func NewPing(clk clock.Clock, log *LogFile) *Ping {
	return &Ping{clock: clk, log: log}
}

func (j *Ping) Name() string { return NamePing }

func (j *Ping) Run(ctx context.Context) error {
	return j.log.Append(j.clock.Now().Format("2006-01-02 15:04:05") + " - Task queue test task executed successfully")
}
