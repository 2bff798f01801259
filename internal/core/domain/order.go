package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID          string
	CustomerID  string
	Customer    *Customer // loaded on reads
	Products    []Product
	TotalAmount decimal.Decimal
	OrderDate   time.Time
	CreatedAt   time.Time
}

// ProductIDs returns the ids of the order's products in order.
func (o Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Products))
	for _, p := range o.Products {
		ids = append(ids, p.ID)
	}
	return ids
}

// SumPrices totals the given products' prices.
func SumPrices(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}
	return total
}

type OrderFilter struct {
	CustomerID    string
	TotalMin      *decimal.Decimal
	TotalMax      *decimal.Decimal
	OrderedAfter  *time.Time
	OrderedBefore *time.Time
}
