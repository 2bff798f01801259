package worker_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/graphql-crm/internal/adapter/handler"
	"github.com/rl1809/graphql-crm/internal/adapter/storage"
	"github.com/rl1809/graphql-crm/internal/clock"
	"github.com/rl1809/graphql-crm/internal/core/service"
	"github.com/rl1809/graphql-crm/internal/jobs"
	"github.com/rl1809/graphql-crm/internal/worker"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sqlx.DB
	queue   *storage.RedisAdapter
	db      *storage.MySQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/crm_test?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sqlx.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	require.NoError(t, storage.Migrate(mysqlDSN))
	for _, table := range []string{"order_products", "orders", "products", "customers"} {
		_, err := db.Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}

	queueName := "test:tasks:" + uuid.NewString()
	return &testEnv{
		redis: rdb,
		mysql: db,
		queue: storage.NewRedisAdapter(rdb, queueName, time.Minute),
		db:    storage.NewMySQLAdapter(db),
		cleanup: func() {
			rdb.Del(context.Background(), queueName)
			rdb.Close()
			db.Close()
		},
	}
}

func TestIntegration_OrderToReportFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	clk := clock.NewSystem()

	mutations := service.NewMutationService(env.db, clk, logger)
	queries := service.NewQueryService(env.db)

	// Serve the API the jobs call
	gql, err := handler.NewGraphQLHandler(mutations, queries, logger)
	require.NoError(t, err)
	srv := httptest.NewServer(handler.NewRouter(gql, handler.NewHTTPHandler(queries, logger), logger))
	defer srv.Close()

	// Create data through the service layer
	alice, err := mutations.CreateCustomer(ctx, service.CreateCustomerInput{Name: "Alice Johnson", Email: "alice@example.com", Phone: "+1234567890"})
	require.NoError(t, err)
	laptop, err := mutations.CreateProduct(ctx, service.CreateProductInput{Name: "Laptop", Price: decimal.RequireFromString("999.99"), Stock: 10})
	require.NoError(t, err)
	mouse, err := mutations.CreateProduct(ctx, service.CreateProductInput{Name: "Mouse", Price: decimal.RequireFromString("29.99"), Stock: 5})
	require.NoError(t, err)

	order, err := mutations.CreateOrder(ctx, service.CreateOrderInput{CustomerID: alice.ID, ProductIDs: []string{laptop.ID, mouse.ID}})
	require.NoError(t, err)
	assert.Equal(t, "1029.98", order.TotalAmount.StringFixed(2))

	// Wire jobs against the test server
	logDir := t.TempDir()
	client := jobs.NewGraphQLClient(srv.URL+"/graphql", 5*time.Second)
	registry := jobs.NewRegistry(
		jobs.NewReport(client, clk, jobs.NewLogFile(filepath.Join(logDir, jobs.ReportLog))),
		jobs.NewLowStock(client, clk, jobs.NewLogFile(filepath.Join(logDir, jobs.LowStockLog))),
		jobs.NewReminders(client, clk, jobs.NewLogFile(filepath.Join(logDir, jobs.RemindersLog))),
	)

	// Enqueue through Redis
	scheduler := worker.NewScheduler(env.queue, clk, logger)
	for _, name := range []string{jobs.NameReport, jobs.NameLowStock, jobs.NameReminders} {
		ok, err := scheduler.Tick(ctx, name)
		require.NoError(t, err)
		require.True(t, ok)

		// Same minute slot collapses
		ok, err = scheduler.Tick(ctx, name)
		require.NoError(t, err)
		require.False(t, ok)
	}

	// Start workers and wait for the queue to drain
	pool := worker.NewPool(env.queue, registry, 2, 10*time.Second, 100*time.Millisecond, logger)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error)
	go func() { done <- pool.Run(runCtx) }()

	reportPath := filepath.Join(logDir, jobs.ReportLog)
	remindersPath := filepath.Join(logDir, jobs.RemindersLog)
	lowStockPath := filepath.Join(logDir, jobs.LowStockLog)
	require.Eventually(t, func() bool {
		for _, p := range []string{reportPath, remindersPath, lowStockPath} {
			if _, err := os.Stat(p); err != nil {
				return false
			}
		}
		return true
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	// Verify
	report, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "Report: 1 customers, 1 orders, 1029.98 revenue.")

	reminders, err := os.ReadFile(remindersPath)
	require.NoError(t, err)
	assert.Contains(t, string(reminders), fmt.Sprintf("Order ID: %s, Customer Email: alice@example.com", order.ID))

	lowStock, err := os.ReadFile(lowStockPath)
	require.NoError(t, err)
	assert.Contains(t, string(lowStock), "  - Mouse: New stock level = 15")
	assert.False(t, strings.Contains(string(lowStock), "Laptop"))

	n, err := env.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
