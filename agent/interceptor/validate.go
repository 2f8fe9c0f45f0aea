package interceptor

import (
	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
	toolx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/tool"
)

// ArgumentError is a tool call rejected before execution. Its message is
// shown to the model as is.
type ArgumentError struct {
	Tool    string
	Field   string
	Message string
}

func (e *ArgumentError) Error() string {
	return e.Message
}

func (e *ArgumentError) Unwrap() error {
	return contractx.ErrValidation
}

// Validator checks model-supplied arguments. A nil error lets the call through.
type Validator func(tool string, args map[string]any) error

// ValidateArgs guards the side-effecting sales tools.
func ValidateArgs(tool string, args map[string]any) error {
	switch tool {
	case toolx.SearchProduct, toolx.RemoveFromCart:
		return requireProductName(tool, args)
	case toolx.AddToCart:
		if err := requireProductName(tool, args); err != nil {
			return err
		}
		if q, ok := toolx.Number(args, toolx.ArgQuantity); !ok || q <= 0 {
			return &ArgumentError{Tool: tool, Field: toolx.ArgQuantity, Message: "The quantity to add is invalid."}
		}
	case toolx.UpdateQuantity:
		if err := requireProductName(tool, args); err != nil {
			return err
		}
		q, ok := toolx.Number(args, toolx.ArgNewQuantity)
		if !ok {
			return &ArgumentError{Tool: tool, Field: toolx.ArgNewQuantity, Message: "The new quantity is invalid."}
		}
		if q < 0 {
			return &ArgumentError{Tool: tool, Field: toolx.ArgNewQuantity, Message: "The new quantity cannot be negative."}
		}
	}
	return nil
}

func requireProductName(tool string, args map[string]any) error {
	if name, ok := toolx.String(args, toolx.ArgProductName); !ok || name == "" {
		return &ArgumentError{Tool: tool, Field: toolx.ArgProductName, Message: "The product name is invalid: it must not be empty."}
	}
	return nil
}
