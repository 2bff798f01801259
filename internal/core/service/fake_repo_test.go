package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/rl1809/graphql-crm/internal/core/domain"
)

var errStoreDown = errors.New("store unavailable")

// fakeRepo is an in-memory DatabaseRepository. WithTx snapshots state and
// restores it when fn fails.
type fakeRepo struct {
	mu        sync.Mutex
	customers []domain.Customer
	products  []domain.Product
	orders    []domain.Order

	inTx bool

	// failCreateCustomerAt makes the n-th CreateCustomer call (1-based) fail
	// with errStoreDown.
	failCreateCustomerAt int
	createCustomerCalls  int
	// uniqueRace makes CreateCustomer report a duplicate as the unique index would.
	uniqueRace bool
	failOrder  bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{}
}

func newTestLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	if f.inTx {
		f.mu.Unlock()
		return fn(ctx)
	}
	f.inTx = true
	customers := append([]domain.Customer(nil), f.customers...)
	products := append([]domain.Product(nil), f.products...)
	orders := append([]domain.Order(nil), f.orders...)
	f.mu.Unlock()

	err := fn(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inTx = false
	if err != nil {
		f.customers, f.products, f.orders = customers, products, orders
	}
	return err
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }

func (f *fakeRepo) CreateCustomer(ctx context.Context, c domain.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCustomerCalls++
	if f.failCreateCustomerAt > 0 && f.createCustomerCalls == f.failCreateCustomerAt {
		return errStoreDown
	}
	if f.uniqueRace {
		return domain.ErrDuplicateEmail
	}
	for _, existing := range f.customers {
		if strings.EqualFold(existing.Email, c.Email) {
			return domain.ErrDuplicateEmail
		}
	}
	f.customers = append(f.customers, c)
	return nil
}

func (f *fakeRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if strings.EqualFold(c.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Customer
	for _, c := range f.customers {
		if !containsFold(c.Name, filter.NameContains) || !containsFold(c.Email, filter.EmailContains) {
			continue
		}
		if filter.CreatedAfter != nil && c.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && c.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) CreateProduct(ctx context.Context, p domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = append(f.products, p)
	return nil
}

func (f *fakeRepo) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Product
	for _, p := range f.products {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Product
	for _, p := range f.products {
		if !containsFold(p.Name, filter.NameContains) {
			continue
		}
		if filter.PriceMin != nil && p.Price.LessThan(*filter.PriceMin) {
			continue
		}
		if filter.PriceMax != nil && p.Price.GreaterThan(*filter.PriceMax) {
			continue
		}
		if filter.StockMax != nil && p.Stock > *filter.StockMax {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) RestockBelow(ctx context.Context, threshold, increment int) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Product
	for i := range f.products {
		if f.products[i].Stock < threshold {
			f.products[i].Stock += increment
			out = append(out, f.products[i])
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateOrder(ctx context.Context, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOrder {
		return errStoreDown
	}
	f.orders = append(f.orders, o)
	return nil
}

func (f *fakeRepo) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.OrderedAfter != nil && o.OrderDate.Before(*filter.OrderedAfter) {
			continue
		}
		if filter.OrderedBefore != nil && o.OrderDate.After(*filter.OrderedBefore) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
