package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

// AddItem adds quantity to the product's line of the pending order, creating
// the customer, the order and the line as needed. Returns the new total.
func (s *Store) AddItem(ctx context.Context, businessID int64, customerPhone string, productID int64, quantity, unitPrice float64) (float64, error) {
	var total float64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		order, err := pendingOrder(ctx, tx, businessID, customerPhone, true)
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().Model((*OrderItem)(nil)).
			Set("quantity = oi.quantity + ?", quantity).
			Where("oi.order_id = ?", order.ID).
			Where("oi.product_id = ?", productID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update line: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			item := &OrderItem{
				OrderID:         order.ID,
				ProductID:       productID,
				Quantity:        quantity,
				PriceAtPurchase: unitPrice,
			}
			if _, err := tx.NewInsert().Model(item).Returning("id").Exec(ctx); err != nil {
				return fmt.Errorf("insert line: %w", err)
			}
		}

		total, err = refreshTotal(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store: add item: %w", err)
	}
	return total, nil
}

// RemoveItem deletes the product's line. found is false when the pending
// order has no such line.
func (s *Store) RemoveItem(ctx context.Context, businessID int64, customerPhone string, productID int64) (float64, bool, error) {
	var (
		total float64
		found bool
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		order, err := pendingOrder(ctx, tx, businessID, customerPhone, false)
		if err != nil || order == nil {
			return err
		}

		res, err := tx.NewDelete().Model((*OrderItem)(nil)).
			Where("order_id = ?", order.ID).
			Where("product_id = ?", productID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete line: %w", err)
		}
		n, _ := res.RowsAffected()
		found = n > 0

		total, err = refreshTotal(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("store: remove item: %w", err)
	}
	return total, found, nil
}

func (s *Store) SetQuantity(ctx context.Context, businessID int64, customerPhone string, productID int64, quantity float64) (float64, bool, error) {
	var (
		total float64
		found bool
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		order, err := pendingOrder(ctx, tx, businessID, customerPhone, false)
		if err != nil || order == nil {
			return err
		}

		res, err := tx.NewUpdate().Model((*OrderItem)(nil)).
			Set("quantity = ?", quantity).
			Where("oi.order_id = ?", order.ID).
			Where("oi.product_id = ?", productID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update line: %w", err)
		}
		n, _ := res.RowsAffected()
		found = n > 0

		total, err = refreshTotal(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("store: set quantity: %w", err)
	}
	return total, found, nil
}

func (s *Store) View(ctx context.Context, businessID int64, customerPhone string) (contractx.CartSummary, error) {
	var summary contractx.CartSummary

	order, err := pendingOrder(ctx, s.db, businessID, customerPhone, false)
	if err != nil {
		return summary, fmt.Errorf("store: view cart: %w", err)
	}
	if order == nil {
		return summary, nil
	}

	var rows []cartRow
	err = s.db.NewSelect().
		TableExpr("order_items AS oi").
		Join("JOIN products AS p ON p.id = oi.product_id").
		ColumnExpr("oi.product_id, p.name AS product_name, oi.quantity, oi.price_at_purchase AS unit_price").
		Where("oi.order_id = ?", order.ID).
		OrderExpr("oi.id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return summary, fmt.Errorf("store: view cart lines: %w", err)
	}

	for _, r := range rows {
		summary.Lines = append(summary.Lines, contractx.CartLine{
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
		})
	}
	summary.Total = order.TotalPrice
	return summary, nil
}

// pendingOrder finds the customer's pending order with this business. With
// create set, the customer and the order are created when missing; otherwise
// a missing order is (nil, nil).
func pendingOrder(ctx context.Context, db bun.IDB, businessID int64, customerPhone string, create bool) (*Order, error) {
	var order Order
	err := db.NewSelect().Model(&order).
		Join("JOIN customers AS c ON c.id = o.customer_id").
		Where("c.phone_number = ?", customerPhone).
		Where("o.business_id = ?", businessID).
		Where("o.status = ?", orderStatusPending).
		OrderExpr("o.id ASC").
		Limit(1).
		Scan(ctx)
	if err == nil {
		return &order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find pending order: %w", err)
	}
	if !create {
		return nil, nil
	}

	customer := &Customer{PhoneNumber: customerPhone}
	_, err = db.NewInsert().Model(customer).
		On("CONFLICT (phone_number) DO UPDATE").
		Set("phone_number = EXCLUDED.phone_number").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}

	order = Order{
		CustomerID: customer.ID,
		BusinessID: businessID,
		Status:     orderStatusPending,
	}
	if _, err := db.NewInsert().Model(&order).Returning("id").Exec(ctx); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &order, nil
}

func refreshTotal(ctx context.Context, db bun.IDB, orderID int64) (float64, error) {
	var total float64
	err := db.NewSelect().Model((*OrderItem)(nil)).
		ColumnExpr("COALESCE(SUM(oi.quantity * oi.price_at_purchase), 0)").
		Where("oi.order_id = ?", orderID).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("sum order: %w", err)
	}

	_, err = db.NewUpdate().Model((*Order)(nil)).
		Set("total_price = ?", total).
		Where("o.id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("update order total: %w", err)
	}
	return total, nil
}
