package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLowStockThreshold = 10
	DefaultRestockIncrement  = 10
)

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	CreatedAt time.Time
}

type ProductFilter struct {
	NameContains string
	PriceMin     *decimal.Decimal
	PriceMax     *decimal.Decimal
	StockMax     *int
}
