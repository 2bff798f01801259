package handler

import (
	"context"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/graphql-crm/internal/core/domain"
	"github.com/rl1809/graphql-crm/internal/core/service"
)

// Object types resolve from map[string]interface{} sources built by the
// present* helpers below, keyed by GraphQL field name.
var (
	customerType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Customer",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"email":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"phone":     &graphql.Field{Type: graphql.String},
			"createdAt": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	productType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Product",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"price":     &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"stock":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"createdAt": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	orderType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Order",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"customer":    &graphql.Field{Type: customerType},
			"products":    &graphql.Field{Type: graphql.NewList(productType)},
			"totalAmount": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"orderDate":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"createdAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	customerInputType = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CustomerInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":  &graphql.InputObjectFieldConfig{Type: graphql.String},
			"email": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"phone": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	customerFilterType = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CustomerFilter",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":         &graphql.InputObjectFieldConfig{Type: graphql.String},
			"email":        &graphql.InputObjectFieldConfig{Type: graphql.String},
			"createdAtGte": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"createdAtLte": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	productFilterType = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "ProductFilter",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":     &graphql.InputObjectFieldConfig{Type: graphql.String},
			"priceGte": &graphql.InputObjectFieldConfig{Type: graphql.Float},
			"priceLte": &graphql.InputObjectFieldConfig{Type: graphql.Float},
			"stockLte": &graphql.InputObjectFieldConfig{Type: graphql.Int},
		},
	})

	orderFilterType = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "OrderFilter",
		Fields: graphql.InputObjectConfigFieldMap{
			"customerId":     &graphql.InputObjectFieldConfig{Type: graphql.ID},
			"totalAmountGte": &graphql.InputObjectFieldConfig{Type: graphql.Float},
			"totalAmountLte": &graphql.InputObjectFieldConfig{Type: graphql.Float},
			"orderDateGte":   &graphql.InputObjectFieldConfig{Type: graphql.String},
			"orderDateLte":   &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	createCustomerPayload = graphql.NewObject(graphql.ObjectConfig{
		Name: "CreateCustomerPayload",
		Fields: graphql.Fields{
			"customer": &graphql.Field{Type: customerType},
			"message":  &graphql.Field{Type: graphql.String},
		},
	})

	bulkCreateCustomersPayload = graphql.NewObject(graphql.ObjectConfig{
		Name: "BulkCreateCustomersPayload",
		Fields: graphql.Fields{
			"customers": &graphql.Field{Type: graphql.NewList(customerType)},
			"errors":    &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	createProductPayload = graphql.NewObject(graphql.ObjectConfig{
		Name: "CreateProductPayload",
		Fields: graphql.Fields{
			"product": &graphql.Field{Type: productType},
		},
	})

	createOrderPayload = graphql.NewObject(graphql.ObjectConfig{
		Name: "CreateOrderPayload",
		Fields: graphql.Fields{
			"order": &graphql.Field{Type: orderType},
		},
	})

	updateLowStockPayload = graphql.NewObject(graphql.ObjectConfig{
		Name: "UpdateLowStockProductsPayload",
		Fields: graphql.Fields{
			"success":         &graphql.Field{Type: graphql.Boolean},
			"message":         &graphql.Field{Type: graphql.String},
			"count":           &graphql.Field{Type: graphql.Int},
			"updatedProducts": &graphql.Field{Type: graphql.NewList(productType)},
		},
	})
)

// mutation is one entry of the static mutation table: its arguments, its
// payload type and the function that performs it.
type mutation struct {
	name        string
	description string
	args        graphql.FieldConfigArgument
	output      *graphql.Object
	mutate      func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)
}

func (h *GraphQLHandler) mutationTable() []mutation {
	return []mutation{
		{
			name:        "createCustomer",
			description: "Create a single customer.",
			args: graphql.FieldConfigArgument{
				"name":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"email": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"phone": &graphql.ArgumentConfig{Type: graphql.String},
			},
			output: createCustomerPayload,
			mutate: h.createCustomer,
		},
		{
			name:        "bulkCreateCustomers",
			description: "Create many customers; invalid records are reported, not fatal.",
			args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(customerInputType)))},
			},
			output: bulkCreateCustomersPayload,
			mutate: h.bulkCreateCustomers,
		},
		{
			name:        "createProduct",
			description: "Create a product.",
			args: graphql.FieldConfigArgument{
				"name":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"price": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				"stock": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
			},
			output: createProductPayload,
			mutate: h.createProduct,
		},
		{
			name:        "createOrder",
			description: "Create an order; every product id must exist.",
			args: graphql.FieldConfigArgument{
				"customerId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				"productIds": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.ID)))},
				"orderDate":  &graphql.ArgumentConfig{Type: graphql.String},
			},
			output: createOrderPayload,
			mutate: h.createOrder,
		},
		{
			name:        "updateLowStockProducts",
			description: "Add increment to the stock of every product below threshold.",
			args: graphql.FieldConfigArgument{
				"threshold": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: domain.DefaultLowStockThreshold},
				"increment": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: domain.DefaultRestockIncrement},
			},
			output: updateLowStockPayload,
			mutate: h.updateLowStockProducts,
		},
	}
}

func (h *GraphQLHandler) buildSchema() (graphql.Schema, error) {
	mutationFields := graphql.Fields{}
	for _, m := range h.mutationTable() {
		m := m
		mutationFields[m.name] = &graphql.Field{
			Type:        m.output,
			Description: m.description,
			Args:        m.args,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				out, err := m.mutate(p.Context, p.Args)
				if err != nil {
					return nil, h.resolveError(p.Context, m.name, err)
				}
				return out, nil
			},
		}
	}

	queryFields := graphql.Fields{
		"hello": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return h.queries.Hello(), nil
			},
		},
		"customers": &graphql.Field{
			Type: graphql.NewList(customerType),
			Args: graphql.FieldConfigArgument{
				"filter": &graphql.ArgumentConfig{Type: customerFilterType},
			},
			Resolve: h.resolveQuery("customers", h.listCustomers),
		},
		"products": &graphql.Field{
			Type: graphql.NewList(productType),
			Args: graphql.FieldConfigArgument{
				"filter": &graphql.ArgumentConfig{Type: productFilterType},
			},
			Resolve: h.resolveQuery("products", h.listProducts),
		},
		"lowStockProducts": &graphql.Field{
			Type: graphql.NewList(productType),
			Args: graphql.FieldConfigArgument{
				"threshold": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: domain.DefaultLowStockThreshold},
			},
			Resolve: h.resolveQuery("lowStockProducts", h.lowStockProducts),
		},
		"orders": &graphql.Field{
			Type: graphql.NewList(orderType),
			Args: graphql.FieldConfigArgument{
				"filter": &graphql.ArgumentConfig{Type: orderFilterType},
			},
			Resolve: h.resolveQuery("orders", h.listOrders),
		},
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queryFields}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutationFields}),
	})
}

func (h *GraphQLHandler) resolveQuery(name string, fn func(ctx context.Context, args map[string]interface{}) (interface{}, error)) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		out, err := fn(p.Context, p.Args)
		if err != nil {
			return nil, h.resolveError(p.Context, name, err)
		}
		return out, nil
	}
}

func (h *GraphQLHandler) createCustomer(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	customer, err := h.mutations.CreateCustomer(ctx, service.CreateCustomerInput{
		Name:  argString(args, "name"),
		Email: argString(args, "email"),
		Phone: argString(args, "phone"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"customer": presentCustomer(customer),
		"message":  "Customer created successfully.",
	}, nil
}

func (h *GraphQLHandler) bulkCreateCustomers(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	raw, _ := args["input"].([]interface{})
	records := make([]service.CreateCustomerInput, 0, len(raw))
	for _, item := range raw {
		rec, _ := item.(map[string]interface{})
		records = append(records, service.CreateCustomerInput{
			Name:  argString(rec, "name"),
			Email: argString(rec, "email"),
			Phone: argString(rec, "phone"),
		})
	}

	res, err := h.mutations.BulkCreateCustomers(ctx, records)
	if err != nil {
		return nil, err
	}

	customers := make([]interface{}, 0, len(res.Created))
	for _, c := range res.Created {
		customers = append(customers, presentCustomer(c))
	}
	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	return map[string]interface{}{
		"customers": customers,
		"errors":    errs,
	}, nil
}

func (h *GraphQLHandler) createProduct(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	price, _ := args["price"].(float64)
	product, err := h.mutations.CreateProduct(ctx, service.CreateProductInput{
		Name:  argString(args, "name"),
		Price: decimal.NewFromFloat(price),
		Stock: argInt(args, "stock"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"product": presentProduct(product)}, nil
}

func (h *GraphQLHandler) createOrder(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	var productIDs []string
	if raw, ok := args["productIds"].([]interface{}); ok {
		for _, id := range raw {
			if s, ok := id.(string); ok {
				productIDs = append(productIDs, s)
			}
		}
	}

	orderDate, err := parseTimeArg(args, "orderDate")
	if err != nil {
		return nil, err
	}

	order, err := h.mutations.CreateOrder(ctx, service.CreateOrderInput{
		CustomerID: argString(args, "customerId"),
		ProductIDs: productIDs,
		OrderDate:  orderDate,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"order": presentOrder(order)}, nil
}

func (h *GraphQLHandler) updateLowStockProducts(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	updated, err := h.mutations.UpdateLowStockProducts(ctx, argInt(args, "threshold"), argInt(args, "increment"))
	if err != nil {
		return nil, err
	}

	message := "No products needed restocking."
	if len(updated) > 0 {
		message = "Low stock products updated successfully."
	}
	return map[string]interface{}{
		"success":         true,
		"message":         message,
		"count":           len(updated),
		"updatedProducts": presentProducts(updated),
	}, nil
}

func (h *GraphQLHandler) listCustomers(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	f, _ := args["filter"].(map[string]interface{})

	filter := domain.CustomerFilter{
		NameContains:  argString(f, "name"),
		EmailContains: argString(f, "email"),
	}
	var err error
	if filter.CreatedAfter, err = parseTimeArg(f, "createdAtGte"); err != nil {
		return nil, err
	}
	if filter.CreatedBefore, err = parseTimeArg(f, "createdAtLte"); err != nil {
		return nil, err
	}

	customers, err := h.queries.ListCustomers(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(customers))
	for _, c := range customers {
		out = append(out, presentCustomer(c))
	}
	return out, nil
}

func (h *GraphQLHandler) listProducts(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	f, _ := args["filter"].(map[string]interface{})

	products, err := h.queries.ListProducts(ctx, domain.ProductFilter{
		NameContains: argString(f, "name"),
		PriceMin:     argDecimal(f, "priceGte"),
		PriceMax:     argDecimal(f, "priceLte"),
		StockMax:     argIntPtr(f, "stockLte"),
	})
	if err != nil {
		return nil, err
	}
	return presentProducts(products), nil
}

func (h *GraphQLHandler) lowStockProducts(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	products, err := h.queries.LowStockProducts(ctx, argInt(args, "threshold"))
	if err != nil {
		return nil, err
	}
	return presentProducts(products), nil
}

func (h *GraphQLHandler) listOrders(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	f, _ := args["filter"].(map[string]interface{})

	filter := domain.OrderFilter{
		CustomerID: argString(f, "customerId"),
		TotalMin:   argDecimal(f, "totalAmountGte"),
		TotalMax:   argDecimal(f, "totalAmountLte"),
	}
	var err error
	if filter.OrderedAfter, err = parseTimeArg(f, "orderDateGte"); err != nil {
		return nil, err
	}
	if filter.OrderedBefore, err = parseTimeArg(f, "orderDateLte"); err != nil {
		return nil, err
	}

	orders, err := h.queries.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(orders))
	for _, o := range orders {
		out = append(out, presentOrder(o))
	}
	return out, nil
}

func presentCustomer(c domain.Customer) map[string]interface{} {
	var phone interface{}
	if c.Phone != "" {
		phone = c.Phone
	}
	return map[string]interface{}{
		"id":        c.ID,
		"name":      c.Name,
		"email":     c.Email,
		"phone":     phone,
		"createdAt": formatTime(c.CreatedAt),
	}
}

func presentProduct(p domain.Product) map[string]interface{} {
	return map[string]interface{}{
		"id":        p.ID,
		"name":      p.Name,
		"price":     p.Price.InexactFloat64(),
		"stock":     p.Stock,
		"createdAt": formatTime(p.CreatedAt),
	}
}

func presentProducts(products []domain.Product) []interface{} {
	out := make([]interface{}, 0, len(products))
	for _, p := range products {
		out = append(out, presentProduct(p))
	}
	return out
}

func presentOrder(o domain.Order) map[string]interface{} {
	var customer interface{}
	if o.Customer != nil {
		customer = presentCustomer(*o.Customer)
	}
	return map[string]interface{}{
		"id":          o.ID,
		"customer":    customer,
		"products":    presentProducts(o.Products),
		"totalAmount": o.TotalAmount.InexactFloat64(),
		"orderDate":   formatTime(o.OrderDate),
		"createdAt":   formatTime(o.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args map[string]interface{}, key string) int {
	n, _ := args[key].(int)
	return n
}

func argIntPtr(args map[string]interface{}, key string) *int {
	n, ok := args[key].(int)
	if !ok {
		return nil
	}
	return &n
}

func argDecimal(args map[string]interface{}, key string) *decimal.Decimal {
	f, ok := args[key].(float64)
	if !ok {
		return nil
	}
	d := decimal.NewFromFloat(f)
	return &d
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseTimeArg accepts RFC 3339 or zone-less timestamps (read as UTC).
func parseTimeArg(args map[string]interface{}, key string) (*time.Time, error) {
	s := strings.TrimSpace(argString(args, key))
	if s == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.Errorf(domain.ErrInvalidFormat, "Invalid %s: %q.", key, s)
}
