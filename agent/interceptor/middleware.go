package interceptor

import (
	"context"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
	toolx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/tool"
)

// ToolHandler executes one tool invocation.
type ToolHandler func(ctx context.Context, inv *contractx.ToolInvocation) (contractx.ToolResult, error)

// ToolMiddleware wraps a ToolHandler to add behavior around it.
type ToolMiddleware func(next ToolHandler) ToolHandler

// Chain applies middlewares so that the first one runs outermost.
func Chain(handler ToolHandler, middlewares ...ToolMiddleware) ToolHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// FromExecutor adapts a tool executor to the handler shape, passing the
// injected dependencies through.
func FromExecutor(exec toolx.Executor) ToolHandler {
	return func(ctx context.Context, inv *contractx.ToolInvocation) (contractx.ToolResult, error) {
		return exec(ctx, inv.ToolName, inv.Args, inv.Deps)
	}
}
