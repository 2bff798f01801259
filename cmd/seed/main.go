package main

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/graphql-crm/internal/adapter/storage"
	"github.com/rl1809/graphql-crm/internal/clock"
	"github.com/rl1809/graphql-crm/internal/config"
	"github.com/rl1809/graphql-crm/internal/core/domain"
	"github.com/rl1809/graphql-crm/internal/core/service"
)

var sampleCustomers = []service.CreateCustomerInput{
	{Name: "Alice Johnson", Email: "alice@example.com", Phone: "+1234567890"},
	{Name: "Bob Smith", Email: "bob@example.com", Phone: "123-456-7890"},
	{Name: "Carol Brown", Email: "carol@example.com", Phone: "+1987654321"},
	{Name: "David Wilson", Email: "david@example.com"},
}

var sampleProducts = []service.CreateProductInput{
	{Name: "Laptop", Price: decimal.RequireFromString("999.99"), Stock: 10},
	{Name: "Mouse", Price: decimal.RequireFromString("29.99"), Stock: 50},
	{Name: "Keyboard", Price: decimal.RequireFromString("79.99"), Stock: 30},
	{Name: "Monitor", Price: decimal.RequireFromString("299.99"), Stock: 15},
	{Name: "Headphones", Price: decimal.RequireFromString("199.99"), Stock: 25},
}

// sampleOrders pairs a customer email with the product names it buys.
var sampleOrders = []struct {
	email    string
	products []string
}{
	{email: "alice@example.com", products: []string{"Laptop", "Mouse"}},
	{email: "bob@example.com", products: []string{"Keyboard", "Headphones"}},
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("failed to build logger: %v", err)
	}
	// Seeding reports on stdout; keep service logs quiet.
	logger.SetLevel(logrus.WarnLevel)

	if err := storage.Migrate(cfg.MySQLDSN); err != nil {
		logger.Fatalf("failed to migrate: %v", err)
	}

	db, err := sqlx.Connect("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	store := storage.NewMySQLAdapter(db)
	mutations := service.NewMutationService(store, clock.NewSystem(), logger)
	queries := service.NewQueryService(store)

	fmt.Println("Seeding database...")
	if err := seed(ctx, mutations, queries); err != nil {
		logger.Fatalf("seeding failed: %v", err)
	}
}

func seed(ctx context.Context, mutations *service.MutationService, queries *service.QueryService) error {
	customers := make(map[string]domain.Customer, len(sampleCustomers))
	for _, in := range sampleCustomers {
		c, err := mutations.CreateCustomer(ctx, in)
		switch {
		case errors.Is(err, domain.ErrDuplicateEmail):
			fmt.Printf("Customer already exists: %s\n", in.Name)
		case err != nil:
			return errors.Wrapf(err, "customer %s", in.Email)
		default:
			fmt.Printf("Created customer: %s\n", c.Name)
		}
	}
	all, err := queries.ListCustomers(ctx, domain.CustomerFilter{})
	if err != nil {
		return err
	}
	for _, c := range all {
		customers[strings.ToLower(c.Email)] = c
	}

	products := make(map[string]domain.Product, len(sampleProducts))
	existing, err := queries.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		return err
	}
	for _, p := range existing {
		products[p.Name] = p
	}
	for _, in := range sampleProducts {
		if _, ok := products[in.Name]; ok {
			fmt.Printf("Product already exists: %s\n", in.Name)
			continue
		}
		p, err := mutations.CreateProduct(ctx, in)
		if err != nil {
			return errors.Wrapf(err, "product %s", in.Name)
		}
		products[p.Name] = p
		fmt.Printf("Created product: %s\n", p.Name)
	}

	for _, o := range sampleOrders {
		customer, ok := customers[o.email]
		if !ok {
			return errors.Errorf("customer %s missing after seeding", o.email)
		}
		placed, err := queries.ListOrders(ctx, domain.OrderFilter{CustomerID: customer.ID})
		if err != nil {
			return err
		}
		if len(placed) > 0 {
			fmt.Printf("Order already exists for %s\n", customer.Name)
			continue
		}

		ids := make([]string, 0, len(o.products))
		for _, name := range o.products {
			ids = append(ids, products[name].ID)
		}
		order, err := mutations.CreateOrder(ctx, service.CreateOrderInput{CustomerID: customer.ID, ProductIDs: ids})
		if err != nil {
			return errors.Wrapf(err, "order for %s", o.email)
		}
		fmt.Printf("Created order for %s: $%s\n", customer.Name, order.TotalAmount.StringFixed(2))
	}

	orders, err := queries.ListOrders(ctx, domain.OrderFilter{})
	if err != nil {
		return err
	}

	fmt.Println("========== SEED RESULTS ==========")
	fmt.Printf("Total customers:  %d\n", len(customers))
	fmt.Printf("Total products:   %d\n", len(products))
	fmt.Printf("Total orders:     %d\n", len(orders))
	fmt.Println("==================================")
	return nil
}
