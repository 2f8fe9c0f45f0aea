package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

var ErrProductNotFound = contractx.ErrUnknownProduct

// checkDecision validates a business answer before anything is loaded.
// Confirming requires a positive price; rejecting ignores it.
func checkDecision(decision string, price *float64) error {
	switch decision {
	case contractx.DecisionConfirm:
		if price == nil || *price <= 0 {
			return fmt.Errorf("%w: a positive price is required to confirm a product", contractx.ErrInvalidRequest)
		}
	case contractx.DecisionReject:
	default:
		return fmt.Errorf("%w: decision must be %q or %q, got %q",
			contractx.ErrInvalidRequest, contractx.DecisionConfirm, contractx.DecisionReject, decision)
	}
	return nil
}

// applyDecision moves p to the availability the decision implies.
func applyDecision(p *Product, decision string, price *float64) {
	if decision == contractx.DecisionConfirm {
		v := *price
		p.Price = &v
		p.AvailabilityStatus = contractx.AvailabilityConfirmed
		return
	}
	p.AvailabilityStatus = contractx.AvailabilityRejected
}

// ResolveProduct records the business answer for a product the assistant could
// not confirm: "SI" confirms it at price, "NO" rejects it.
func (s *Store) ResolveProduct(ctx context.Context, productID int64, decision string, price *float64) (contractx.Product, error) {
	if err := checkDecision(decision, price); err != nil {
		return contractx.Product{}, err
	}

	var p Product
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(&p).Where("p.id = ?", productID).For("UPDATE").Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id=%d", ErrProductNotFound, productID)
		}
		if err != nil {
			return fmt.Errorf("store: load product %d: %w", productID, err)
		}

		applyDecision(&p, decision, price)
		if _, err := tx.NewUpdate().Model(&p).
			Column("price", "availability_status").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("store: resolve product %d: %w", productID, err)
		}
		return nil
	})
	if err != nil {
		return contractx.Product{}, err
	}
	return *toContract(p), nil
}
