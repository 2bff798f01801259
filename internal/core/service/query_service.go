package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/rl1809/graphql-crm/internal/core/domain"
	"github.com/rl1809/graphql-crm/internal/port"
)

const helloMessage = "Hello, GraphQL!"

// QueryService is a read-only passthrough to the store.
type QueryService struct {
	db port.DatabaseRepository
}

func NewQueryService(db port.DatabaseRepository) *QueryService {
	return &QueryService{db: db}
}

func (s *QueryService) Hello() string {
	return helloMessage
}

func (s *QueryService) ListCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error) {
	customers, err := s.db.ListCustomers(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	return customers, nil
}

func (s *QueryService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	products, err := s.db.ListProducts(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// LowStockProducts lists products with stock strictly below threshold.
func (s *QueryService) LowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error) {
	if threshold < 0 {
		return nil, domain.Errorf(domain.ErrInvalidValue, "Threshold cannot be negative.")
	}
	if threshold == 0 {
		return []domain.Product{}, nil
	}
	stockMax := threshold - 1
	return s.ListProducts(ctx, domain.ProductFilter{StockMax: &stockMax})
}

func (s *QueryService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	orders, err := s.db.ListOrders(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func (s *QueryService) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
