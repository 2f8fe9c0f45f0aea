package tool

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

const msgLookupFailed = "I had a problem looking up the product."

func searchProduct(ctx context.Context, args map[string]any, deps contractx.Dependencies) (contractx.ToolResult, error) {
	name, _ := String(args, ArgProductName)
	result, _, err := lookupProduct(ctx, name, deps)
	return result, err
}

// lookupProduct maps a catalog entry onto the result taxonomy. The product is
// returned whenever the catalog matched something.
func lookupProduct(ctx context.Context, name string, deps contractx.Dependencies) (contractx.ToolResult, *contractx.Product, error) {
	if deps.Catalog == nil {
		return contractx.ToolResult{}, nil, fmt.Errorf("%w: catalog is not configured", contractx.ErrToolUnavailable)
	}

	product, err := deps.Catalog.FindProduct(ctx, deps.BusinessID, name)
	if err != nil {
		log.Error().Err(err).
			Int64("business_id", deps.BusinessID).
			Str("product_name", name).
			Msg("tool: catalog lookup failed")
		return contractx.Failure(msgLookupFailed), nil, nil
	}
	if product == nil {
		return contractx.Failure(fmt.Sprintf("Product '%s' was not found in the catalog.", name)), nil, nil
	}

	details := productDetails(*product)
	payload := map[string]any{"product": details}

	switch product.Availability {
	case contractx.AvailabilityConfirmed:
		if product.Price == nil || *product.Price <= 0 {
			return contractx.ToolResult{
				Status:  contractx.StatusPriceNotFound,
				Message: fmt.Sprintf("I found '%s' (%s), but its price was not found right now.", product.Name, product.Description),
				Payload: payload,
			}, product, nil
		}
		details["price"] = *product.Price
		return contractx.Success(
			fmt.Sprintf("Yes, we have %s! It costs $%.2f. Description: %s", product.Name, *product.Price, product.Description),
			payload,
		), product, nil
	case contractx.AvailabilityOutOfStock:
		return contractx.ToolResult{
			Status:  contractx.StatusOutOfStock,
			Message: fmt.Sprintf("Sorry, '%s' (%s) is out of stock at the moment.", product.Name, product.Description),
			Payload: payload,
		}, product, nil
	case contractx.AvailabilityUnconfirmed:
		notifyUnconfirmed(ctx, deps, *product)
		return contractx.ToolResult{
			Status:  contractx.StatusUnconfirmed,
			Message: fmt.Sprintf("I found '%s' (%s). Give me a moment to confirm availability and price.", product.Name, product.Description),
			Payload: payload,
		}, product, nil
	default:
		return contractx.ToolResult{
			Status:  contractx.StatusNotAvailable,
			Message: fmt.Sprintf("Sorry, we do not carry '%s'.", product.Name),
			Payload: payload,
		}, product, nil
	}
}

func productDetails(p contractx.Product) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"status":      p.Availability,
		"unit":        p.Unit,
	}
}

// notifyUnconfirmed never fails the lookup.
func notifyUnconfirmed(ctx context.Context, deps contractx.Dependencies, product contractx.Product) {
	logger := log.With().
		Int64("business_id", deps.BusinessID).
		Int64("product_id", product.ID).
		Str("product_name", product.Name).
		Logger()

	if deps.Notifier == nil {
		logger.Info().Msg("tool: unconfirmed product requested, no notifier configured")
		return
	}
	if err := deps.Notifier.NotifyUnconfirmed(ctx, deps.BusinessID, deps.CustomerPhone, product); err != nil {
		logger.Warn().Err(err).Msg("tool: notify unconfirmed product failed")
	}
}
