package tool

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

const (
	SearchProduct  = "search_product"
	AddToCart      = "add_to_cart"
	ViewCart       = "view_cart"
	RemoveFromCart = "remove_from_cart"
	UpdateQuantity = "update_quantity"
	Calculate      = "calculate"

	ArgProductName = "product_name"
	ArgQuantity    = "quantity"
	ArgNewQuantity = "new_quantity"
	ArgExpression  = "expression"
)

// Executor runs one tool. Business outcomes are reported through the result;
// a non-nil error means the tool could not run at all.
type Executor func(ctx context.Context, tool string, args map[string]any, deps contractx.Dependencies) (contractx.ToolResult, error)

// Build returns the tool catalog advertised to the model and its executor.
func Build() ([]*schema.ToolInfo, Executor) {
	return Infos(), NewExecutor()
}

func NewExecutor() Executor {
	return func(ctx context.Context, tool string, args map[string]any, deps contractx.Dependencies) (contractx.ToolResult, error) {
		switch tool {
		case SearchProduct:
			return searchProduct(ctx, args, deps)
		case AddToCart:
			return addToCart(ctx, args, deps)
		case ViewCart:
			return viewCart(ctx, deps)
		case RemoveFromCart:
			return removeFromCart(ctx, args, deps)
		case UpdateQuantity:
			return updateQuantity(ctx, args, deps)
		case Calculate:
			return calculate(args), nil
		default:
			log.Warn().Str("tool", tool).Msg("tool: unknown tool requested")
			return contractx.Failure(fmt.Sprintf("Tool '%s' is not valid for this assistant.", tool)), nil
		}
	}
}

func Infos() []*schema.ToolInfo {
	productName := &schema.ParameterInfo{
		Type:     schema.String,
		Desc:     "Product name as the customer wrote it",
		Required: true,
	}
	return []*schema.ToolInfo{
		{
			Name: SearchProduct,
			Desc: "Look up a product in the store catalog and report its availability and price.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				ArgProductName: productName,
			}),
		},
		{
			Name: AddToCart,
			Desc: "Add a quantity of a product to the customer's cart. Quantities may be fractional, e.g. 0.5 kg.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				ArgProductName: productName,
				ArgQuantity:    {Type: schema.Number, Desc: "Quantity to add, greater than zero", Required: true},
			}),
		},
		{
			Name: ViewCart,
			Desc: "Show the items and total of the customer's cart.",
		},
		{
			Name: RemoveFromCart,
			Desc: "Remove a product from the customer's cart.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				ArgProductName: productName,
			}),
		},
		{
			Name: UpdateQuantity,
			Desc: "Change the quantity of a product already in the cart. Zero removes it.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				ArgProductName: productName,
				ArgNewQuantity: {Type: schema.Number, Desc: "New quantity, zero or more", Required: true},
			}),
		},
		{
			Name: Calculate,
			Desc: "Evaluate an arithmetic expression, e.g. to work out prices for several units.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				ArgExpression: {Type: schema.String, Desc: "Expression using + - * / % ^ and parentheses", Required: true},
			}),
		},
	}
}
