package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

func addToCart(ctx context.Context, args map[string]any, deps contractx.Dependencies) (contractx.ToolResult, error) {
	if deps.Cart == nil {
		return contractx.ToolResult{}, fmt.Errorf("%w: cart is not configured", contractx.ErrToolUnavailable)
	}
	name, _ := String(args, ArgProductName)
	quantity, _ := Number(args, ArgQuantity)

	found, product, err := lookupProduct(ctx, name, deps)
	if err != nil || found.Status != contractx.StatusSuccess {
		return found, err
	}

	total, err := deps.Cart.AddItem(ctx, deps.BusinessID, deps.CustomerPhone, product.ID, quantity, *product.Price)
	if err != nil {
		cartLogger(deps).Error().Err(err).Int64("product_id", product.ID).Msg("tool: add to cart failed")
		return contractx.Failure("I had a problem adding the product to your order."), nil
	}
	return contractx.Success(
		fmt.Sprintf("Done! I added %sx '%s' to your cart. Your order total is now $%.2f.", formatQuantity(quantity), product.Name, total),
		map[string]any{"product_id": product.ID, "quantity": quantity, "total": total},
	), nil
}

func removeFromCart(ctx context.Context, args map[string]any, deps contractx.Dependencies) (contractx.ToolResult, error) {
	if deps.Cart == nil {
		return contractx.ToolResult{}, fmt.Errorf("%w: cart is not configured", contractx.ErrToolUnavailable)
	}
	name, _ := String(args, ArgProductName)

	product, miss, err := cartProduct(ctx, name, deps)
	if err != nil || product == nil {
		return miss, err
	}

	total, removed, err := deps.Cart.RemoveItem(ctx, deps.BusinessID, deps.CustomerPhone, product.ID)
	if err != nil {
		cartLogger(deps).Error().Err(err).Int64("product_id", product.ID).Msg("tool: remove from cart failed")
		return contractx.Failure("I had a problem removing the product from your order."), nil
	}
	if !removed {
		return contractx.Failure(fmt.Sprintf("Product '%s' was not found in your cart.", product.Name)), nil
	}
	return contractx.Success(
		fmt.Sprintf("I removed '%s' from your cart. The new total is $%.2f.", product.Name, total),
		map[string]any{"product_id": product.ID, "total": total},
	), nil
}

// updateQuantity removes the line when the new quantity is zero or less.
func updateQuantity(ctx context.Context, args map[string]any, deps contractx.Dependencies) (contractx.ToolResult, error) {
	if deps.Cart == nil {
		return contractx.ToolResult{}, fmt.Errorf("%w: cart is not configured", contractx.ErrToolUnavailable)
	}
	quantity, _ := Number(args, ArgNewQuantity)
	if quantity <= 0 {
		return removeFromCart(ctx, args, deps)
	}
	name, _ := String(args, ArgProductName)

	product, miss, err := cartProduct(ctx, name, deps)
	if err != nil || product == nil {
		return miss, err
	}

	total, updated, err := deps.Cart.SetQuantity(ctx, deps.BusinessID, deps.CustomerPhone, product.ID, quantity)
	if err != nil {
		cartLogger(deps).Error().Err(err).Int64("product_id", product.ID).Msg("tool: update quantity failed")
		return contractx.Failure("I had a problem changing the quantity of the product."), nil
	}
	if !updated {
		return contractx.Failure(fmt.Sprintf("Product '%s' was not found in your cart.", product.Name)), nil
	}
	return contractx.Success(
		fmt.Sprintf("I updated '%s' to %s. Your new order total is $%.2f.", product.Name, formatQuantity(quantity), total),
		map[string]any{"product_id": product.ID, "quantity": quantity, "total": total},
	), nil
}

func viewCart(ctx context.Context, deps contractx.Dependencies) (contractx.ToolResult, error) {
	if deps.Cart == nil {
		return contractx.ToolResult{}, fmt.Errorf("%w: cart is not configured", contractx.ErrToolUnavailable)
	}

	summary, err := deps.Cart.View(ctx, deps.BusinessID, deps.CustomerPhone)
	if err != nil {
		cartLogger(deps).Error().Err(err).Msg("tool: view cart failed")
		return contractx.Failure("I had a problem loading your order."), nil
	}
	if len(summary.Lines) == 0 {
		return contractx.ToolResult{
			Status:  contractx.StatusEmpty,
			Message: "Your shopping cart is empty right now.",
		}, nil
	}

	var b strings.Builder
	b.WriteString("Your cart has:")
	items := make([]map[string]any, 0, len(summary.Lines))
	for _, line := range summary.Lines {
		fmt.Fprintf(&b, "\n- %sx %s ($%.2f each)", formatQuantity(line.Quantity), line.ProductName, line.UnitPrice)
		items = append(items, map[string]any{
			"product_id":   line.ProductID,
			"product_name": line.ProductName,
			"quantity":     line.Quantity,
			"unit_price":   line.UnitPrice,
		})
	}
	fmt.Fprintf(&b, "\n\nThe total is $%.2f.", summary.Total)

	return contractx.Success(b.String(), map[string]any{
		"items": items,
		"total": summary.Total,
	}), nil
}

// cartProduct resolves a product for a cart change. Only priced, confirmed
// products can be in a cart, so anything else is reported as not in the cart.
func cartProduct(ctx context.Context, name string, deps contractx.Dependencies) (*contractx.Product, contractx.ToolResult, error) {
	found, product, err := lookupProduct(ctx, name, deps)
	if err != nil {
		return nil, contractx.ToolResult{}, err
	}
	if found.Status != contractx.StatusSuccess {
		if found.Message == msgLookupFailed {
			return nil, found, nil
		}
		return nil, contractx.Failure(fmt.Sprintf("Product '%s' was not found in your cart.", name)), nil
	}
	return product, contractx.ToolResult{}, nil
}

func cartLogger(deps contractx.Dependencies) *zerolog.Logger {
	l := log.With().
		Int64("business_id", deps.BusinessID).
		Str("customer_phone", deps.CustomerPhone).
		Logger()
	return &l
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
