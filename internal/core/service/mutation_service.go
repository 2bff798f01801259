package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/graphql-crm/internal/clock"
	"github.com/rl1809/graphql-crm/internal/core/domain"
	"github.com/rl1809/graphql-crm/internal/port"
)

type CreateCustomerInput struct {
	Name  string
	Email string
	Phone string
}

type BulkCreateResult struct {
	Created []domain.Customer
	// Errors holds one "Record <n>: <reason>" entry per rejected record, in
	// input order, 1-indexed.
	Errors []string
}

type CreateProductInput struct {
	Name  string
	Price decimal.Decimal
	Stock int
}

type CreateOrderInput struct {
	CustomerID string
	ProductIDs []string
	OrderDate  *time.Time
}

type MutationService struct {
	db     port.DatabaseRepository
	clock  clock.Clock
	logger logrus.FieldLogger
}

func NewMutationService(db port.DatabaseRepository, clk clock.Clock, logger logrus.FieldLogger) *MutationService {
	return &MutationService{
		db:     db,
		clock:  clk,
		logger: logger,
	}
}

func (s *MutationService) CreateCustomer(ctx context.Context, in CreateCustomerInput) (domain.Customer, error) {
	customer, err := s.createCustomer(ctx, in)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logger.WithFields(logrus.Fields{"customer_id": customer.ID}).Info("customer created")
	return customer, nil
}

// BulkCreateCustomers evaluates records in order inside one transaction.
// Rejected records are reported and skipped; only infrastructure failures
// abort the batch, in which case nothing is persisted.
func (s *MutationService) BulkCreateCustomers(ctx context.Context, records []CreateCustomerInput) (BulkCreateResult, error) {
	var result BulkCreateResult

	err := s.db.WithTx(ctx, func(txCtx context.Context) error {
		result = BulkCreateResult{}
		for i, rec := range records {
			customer, err := s.createCustomer(txCtx, rec)
			if err != nil {
				if domain.Kind(err) == nil {
					return errors.Wrapf(err, "record %d", i+1)
				}
				result.Errors = append(result.Errors, fmt.Sprintf("Record %d: %s", i+1, err.Error()))
				continue
			}
			result.Created = append(result.Created, customer)
		}
		return nil
	})
	if err != nil {
		return BulkCreateResult{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"records":  len(records),
		"created":  len(result.Created),
		"rejected": len(result.Errors),
	}).Info("bulk customer create finished")
	return result, nil
}

func (s *MutationService) createCustomer(ctx context.Context, in CreateCustomerInput) (domain.Customer, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	phone := strings.TrimSpace(in.Phone)

	if name == "" || email == "" {
		return domain.Customer{}, domain.Errorf(domain.ErrInvalidValue, "Name and Email are required.")
	}
	if err := domain.ValidateName(name); err != nil {
		return domain.Customer{}, err
	}
	if err := domain.ValidateEmail(email); err != nil {
		return domain.Customer{}, err
	}
	if phone != "" {
		if err := domain.ValidatePhone(phone); err != nil {
			return domain.Customer{}, err
		}
	}

	exists, err := s.db.EmailExists(ctx, email)
	if err != nil {
		return domain.Customer{}, errors.Wrap(err, "check email")
	}
	if exists {
		return domain.Customer{}, domain.Errorf(domain.ErrDuplicateEmail, "Email already exists.")
	}

	customer := domain.Customer{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		CreatedAt: s.clock.Now(),
	}
	if err := s.db.CreateCustomer(ctx, customer); err != nil {
		// A concurrent insert can still win the unique index.
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return domain.Customer{}, domain.Errorf(domain.ErrDuplicateEmail, "Email already exists.")
		}
		return domain.Customer{}, errors.Wrap(err, "create customer")
	}
	return customer, nil
}

func (s *MutationService) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	if err := domain.ValidateName(in.Name); err != nil {
		return domain.Product{}, err
	}
	// Validate what will be stored: DECIMAL(10,2) keeps two places.
	price := in.Price.Round(2)
	if err := domain.ValidatePrice(price); err != nil {
		return domain.Product{}, err
	}
	if err := domain.ValidateStock(in.Stock); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Price:     price,
		Stock:     in.Stock,
		CreatedAt: s.clock.Now(),
	}
	if err := s.db.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, errors.Wrap(err, "create product")
	}

	s.logger.WithFields(logrus.Fields{"product_id": product.ID}).Info("product created")
	return product, nil
}

// CreateOrder requires every product id to resolve. Repeated ids count once.
func (s *MutationService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	productIDs := uniqueIDs(in.ProductIDs)
	if len(productIDs) == 0 {
		return domain.Order{}, domain.Errorf(domain.ErrInvalidValue, "At least one product is required.")
	}

	now := s.clock.Now()
	orderDate := now
	if in.OrderDate != nil {
		orderDate = in.OrderDate.UTC()
	}

	var order domain.Order
	err := s.db.WithTx(ctx, func(txCtx context.Context) error {
		customer, err := s.db.GetCustomer(txCtx, in.CustomerID)
		if err != nil {
			return errors.Wrap(err, "get customer")
		}
		if customer == nil {
			return domain.Errorf(domain.ErrNotFound, "Invalid customer ID.")
		}

		products, err := s.db.GetProducts(txCtx, productIDs)
		if err != nil {
			return errors.Wrap(err, "get products")
		}
		if len(products) == 0 {
			return domain.Errorf(domain.ErrNotFound, "Invalid product IDs.")
		}
		if missing := missingIDs(productIDs, products); len(missing) > 0 {
			return domain.Errorf(domain.ErrPartialMatch, "Invalid product IDs: %s.", strings.Join(missing, ", "))
		}

		order = domain.Order{
			ID:          uuid.NewString(),
			CustomerID:  customer.ID,
			Customer:    customer,
			Products:    products,
			TotalAmount: domain.SumPrices(products),
			OrderDate:   orderDate,
			CreatedAt:   now,
		}
		if err := s.db.CreateOrder(txCtx, order); err != nil {
			return errors.Wrap(err, "create order")
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"total":       order.TotalAmount.StringFixed(2),
	}).Info("order created")
	return order, nil
}

// UpdateLowStockProducts tops up every product whose stock is below
// threshold by increment.
func (s *MutationService) UpdateLowStockProducts(ctx context.Context, threshold, increment int) ([]domain.Product, error) {
	if increment <= 0 {
		return nil, domain.Errorf(domain.ErrInvalidValue, "Increment must be positive.")
	}
	if threshold < 0 {
		return nil, domain.Errorf(domain.ErrInvalidValue, "Threshold cannot be negative.")
	}

	var updated []domain.Product
	err := s.db.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.db.RestockBelow(txCtx, threshold, increment)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "restock products")
	}

	s.logger.WithFields(logrus.Fields{
		"threshold": threshold,
		"increment": increment,
		"updated":   len(updated),
	}).Info("low stock products replenished")
	return updated, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(want []string, found []domain.Product) []string {
	have := make(map[string]struct{}, len(found))
	for _, p := range found {
		have[p.ID] = struct{}{}
	}
	var missing []string
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
