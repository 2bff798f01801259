package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rl1809/graphql-crm/internal/core/domain"
)

const mysqlDuplicateEntry = 1062

type txKey struct{}

type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLAdapter) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// conn returns the transaction bound to ctx, or the pool.
func (m *MySQLAdapter) conn(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return m.db
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

type customerRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Email     string         `db:"email"`
	Phone     sql.NullString `db:"phone"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r customerRow) toDomain() domain.Customer {
	return domain.Customer{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone.String,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type productRow struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Price     decimal.Decimal `db:"price"`
	Stock     int             `db:"stock"`
	CreatedAt time.Time       `db:"created_at"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:        r.ID,
		Name:      r.Name,
		Price:     r.Price,
		Stock:     r.Stock,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type orderRow struct {
	ID                string          `db:"id"`
	CustomerID        string          `db:"customer_id"`
	TotalAmount       decimal.Decimal `db:"total_amount"`
	OrderDate         time.Time       `db:"order_date"`
	CreatedAt         time.Time       `db:"created_at"`
	CustomerName      string          `db:"customer_name"`
	CustomerEmail     string          `db:"customer_email"`
	CustomerPhone     sql.NullString  `db:"customer_phone"`
	CustomerCreatedAt time.Time       `db:"customer_created_at"`
}

type orderProductRow struct {
	OrderID string `db:"order_id"`
	productRow
}

func (m *MySQLAdapter) CreateCustomer(ctx context.Context, customer domain.Customer) error {
	phone := sql.NullString{String: customer.Phone, Valid: customer.Phone != ""}
	_, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		customer.ID, customer.Name, customer.Email, phone, customer.CreatedAt,
	)
	if isDuplicateEntry(err) {
		return domain.ErrDuplicateEmail
	}
	if err != nil {
		return errors.Wrap(err, "insert customer")
	}
	return nil
}

func (m *MySQLAdapter) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, m.conn(ctx), &exists,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE email = ?)`, email)
	if err != nil {
		return false, errors.Wrap(err, "query email")
	}
	return exists, nil
}

func (m *MySQLAdapter) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var row customerRow
	err := sqlx.GetContext(ctx, m.conn(ctx), &row, `
		SELECT id, name, email, phone, created_at
		FROM customers WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query customer")
	}

	customer := row.toDomain()
	return &customer, nil
}

func (m *MySQLAdapter) ListCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error) {
	var w where
	w.contains("name", filter.NameContains)
	w.contains("email", filter.EmailContains)
	if filter.CreatedAfter != nil {
		w.add("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		w.add("created_at <= ?", *filter.CreatedBefore)
	}

	var rows []customerRow
	err := sqlx.SelectContext(ctx, m.conn(ctx), &rows, `
		SELECT id, name, email, phone, created_at
		FROM customers`+w.clause()+`
		ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "query customers")
	}

	customers := make([]domain.Customer, 0, len(rows))
	for _, r := range rows {
		customers = append(customers, r.toDomain())
	}
	return customers, nil
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, product domain.Product) error {
	_, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		product.ID, product.Name, product.Price, product.Stock, product.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert product")
	}
	return nil
}

func (m *MySQLAdapter) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := m.conn(ctx)
	query, args, err := sqlx.In(`
		SELECT id, name, price, stock, created_at
		FROM products WHERE id IN (?)
		ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "expand product ids")
	}

	var rows []productRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	return productsToDomain(rows), nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	var w where
	w.contains("name", filter.NameContains)
	if filter.PriceMin != nil {
		w.add("price >= ?", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		w.add("price <= ?", *filter.PriceMax)
	}
	if filter.StockMax != nil {
		w.add("stock <= ?", *filter.StockMax)
	}

	var rows []productRow
	err := sqlx.SelectContext(ctx, m.conn(ctx), &rows, `
		SELECT id, name, price, stock, created_at
		FROM products`+w.clause()+`
		ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	return productsToDomain(rows), nil
}

// RestockBelow locks the low-stock rows before updating them, so it is meant
// to run inside WithTx.
func (m *MySQLAdapter) RestockBelow(ctx context.Context, threshold, increment int) ([]domain.Product, error) {
	q := m.conn(ctx)

	var rows []productRow
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT id, name, price, stock, created_at
		FROM products WHERE stock < ?
		ORDER BY created_at, id
		FOR UPDATE`, threshold)
	if err != nil {
		return nil, errors.Wrap(err, "select low stock")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID)
		rows[i].Stock += increment
	}

	query, args, err := sqlx.In(`UPDATE products SET stock = stock + ? WHERE id IN (?)`, increment, ids)
	if err != nil {
		return nil, errors.Wrap(err, "expand restock ids")
	}
	if _, err := q.ExecContext(ctx, q.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "update stock")
	}
	return productsToDomain(rows), nil
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	return m.WithTx(ctx, func(txCtx context.Context) error {
		q := m.conn(txCtx)

		_, err := q.ExecContext(txCtx, `
			INSERT INTO orders (id, customer_id, total_amount, order_date, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, order.CustomerID, order.TotalAmount, order.OrderDate, order.CreatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "insert order")
		}

		for i, p := range order.Products {
			_, err := q.ExecContext(txCtx, `
				INSERT INTO order_products (order_id, product_id, position)
				VALUES (?, ?, ?)`,
				order.ID, p.ID, i,
			)
			if err != nil {
				return errors.Wrapf(err, "insert order product %s", p.ID)
			}
		}
		return nil
	})
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var w where
	if filter.CustomerID != "" {
		w.add("o.customer_id = ?", filter.CustomerID)
	}
	if filter.TotalMin != nil {
		w.add("o.total_amount >= ?", *filter.TotalMin)
	}
	if filter.TotalMax != nil {
		w.add("o.total_amount <= ?", *filter.TotalMax)
	}
	if filter.OrderedAfter != nil {
		w.add("o.order_date >= ?", *filter.OrderedAfter)
	}
	if filter.OrderedBefore != nil {
		w.add("o.order_date <= ?", *filter.OrderedBefore)
	}

	q := m.conn(ctx)

	var rows []orderRow
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT o.id, o.customer_id, o.total_amount, o.order_date, o.created_at,
		       c.name AS customer_name, c.email AS customer_email,
		       c.phone AS customer_phone, c.created_at AS customer_created_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id`+w.clause()+`
		ORDER BY o.created_at, o.id`, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	if len(rows) == 0 {
		return []domain.Order{}, nil
	}

	orderIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		orderIDs = append(orderIDs, r.ID)
	}

	query, args, err := sqlx.In(`
		SELECT op.order_id, p.id, p.name, p.price, p.stock, p.created_at
		FROM order_products op
		JOIN products p ON p.id = op.product_id
		WHERE op.order_id IN (?)
		ORDER BY op.order_id, op.position`, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "expand order ids")
	}

	var items []orderProductRow
	if err := sqlx.SelectContext(ctx, q, &items, q.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "query order products")
	}

	byOrder := make(map[string][]domain.Product, len(rows))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it.productRow.toDomain())
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		customer := customerRow{
			ID:        r.CustomerID,
			Name:      r.CustomerName,
			Email:     r.CustomerEmail,
			Phone:     r.CustomerPhone,
			CreatedAt: r.CustomerCreatedAt,
		}.toDomain()

		orders = append(orders, domain.Order{
			ID:          r.ID,
			CustomerID:  r.CustomerID,
			Customer:    &customer,
			Products:    byOrder[r.ID],
			TotalAmount: r.TotalAmount,
			OrderDate:   r.OrderDate.UTC(),
			CreatedAt:   r.CreatedAt.UTC(),
		})
	}
	return orders, nil
}

func productsToDomain(rows []productRow) []domain.Product {
	products := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.toDomain())
	}
	return products
}

// where accumulates AND-ed conditions for list queries.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, arg)
}

// contains adds a case-insensitive substring match; empty needles are ignored.
func (w *where) contains(column, needle string) {
	if needle == "" {
		return
	}
	w.add("LOWER("+column+") LIKE ?", "%"+escapeLike(strings.ToLower(needle))+"%")
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "\n\t\tWHERE " + strings.Join(w.conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
