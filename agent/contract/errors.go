package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrToolUnavailable = errors.New("tool unavailable")
	ErrToolExecution   = errors.New("tool execution failed")
	ErrUnknownBusiness = errors.New("business not found")
	ErrUnknownProduct  = errors.New("product not found")
)
