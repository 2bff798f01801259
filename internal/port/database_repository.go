package port

import (
	"context"

	"github.com/rl1809/graphql-crm/internal/core/domain"
)

// Transactor runs fn inside one transaction; repository calls made with the
// context passed to fn join it. Nested calls reuse the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CustomerRepository interface {
	// CreateCustomer inserts a customer, returning domain.ErrDuplicateEmail
	// when the unique email index rejects it
	CreateCustomer(ctx context.Context, customer domain.Customer) error

	// EmailExists reports whether a customer already uses the email
	EmailExists(ctx context.Context, email string) (bool, error)

	// GetCustomer returns nil, nil when no customer has the id
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)

	ListCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, product domain.Product) error

	// GetProducts returns the products that exist among ids, unknown ids are skipped
	GetProducts(ctx context.Context, ids []string) ([]domain.Product, error)

	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)

	// RestockBelow adds increment to every product with stock < threshold
	// and returns the updated rows
	RestockBelow(ctx context.Context, threshold, increment int) ([]domain.Product, error)
}

type OrderRepository interface {
	// CreateOrder persists the order row and its product associations
	CreateOrder(ctx context.Context, order domain.Order) error

	// ListOrders returns orders with Customer and Products loaded
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
}

type DatabaseRepository interface {
	Transactor
	CustomerRepository
	ProductRepository
	OrderRepository

	Ping(ctx context.Context) error
}
