package interceptor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	cachex "github.com/tanpawarit/Chative-Sales-Interceptor/agent/cache"
	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
	retryx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/retry"
	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/telemetry"
	toolx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/tool"
)

var turn = contractx.TurnContext{
	SessionID:    "5550001-5551234",
	UserID:       "5551234",
	AgentName:    "agent_for_7",
	InvocationID: "inv-1",
	BusinessID:   7,
}

type scriptedTool struct {
	calls   int
	results []contractx.ToolResult
	last    *contractx.ToolInvocation
}

func (s *scriptedTool) handle(_ context.Context, inv *contractx.ToolInvocation) (contractx.ToolResult, error) {
	s.last = inv
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], nil
}

func newTestPipeline(opts ...Option) *Pipeline {
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return New(
		cachex.New(cachex.WithLogger(zerolog.Nop())),
		retryx.New(retryx.DefaultConfig()),
		telemetry.NewMetrics(zerolog.Nop()),
		opts...,
	)
}

func turnContext(p *Pipeline) (context.Context, *telemetry.Recorder) {
	r := p.NewRecorder()
	return telemetry.WithRecorder(context.Background(), r), r
}

func invocation(tool string, args map[string]any) *contractx.ToolInvocation {
	return &contractx.ToolInvocation{ToolName: tool, Args: args, Turn: turn}
}

func countEvents(r *telemetry.Recorder, eventType telemetry.EventType) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func TestCacheHitShortCircuitsTool(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx, rec := turnContext(p)
	tool := &scriptedTool{results: []contractx.ToolResult{
		contractx.Success("Yes, we have Coca Cola!", map[string]any{"product": map[string]any{"id": int64(1)}}),
	}}
	handler := p.Intercept(tool.handle)

	args := map[string]any{toolx.ArgProductName: "coca"}
	first, err := handler(ctx, invocation(toolx.SearchProduct, args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := handler(ctx, invocation(toolx.SearchProduct, map[string]any{toolx.ArgProductName: "coca"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tool.calls != 1 {
		t.Fatalf("tool must run once, ran %d times", tool.calls)
	}
	if first.Message != second.Message || second.Status != contractx.StatusSuccess {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
	if countEvents(rec, telemetry.EventToolCacheHit) != 1 {
		t.Fatal("expected one cache hit event")
	}
	snap := p.Metrics()
	if snap.ToolCalls != 1 || snap.ToolCacheHits != 1 {
		t.Fatalf("unexpected metrics: %+v", snap)
	}
}

func TestRetryableFailureThenSuccess(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx, _ := turnContext(p)
	tool := &scriptedTool{results: []contractx.ToolResult{
		contractx.Failure("I had a problem looking up the product."),
		contractx.Success("Yes, we have Coca Cola!", nil),
	}}
	handler := p.Intercept(tool.handle)
	args := map[string]any{toolx.ArgProductName: "coca"}

	out, err := handler(ctx, invocation(toolx.SearchProduct, args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != contractx.StatusErrorTemporal || out.RetryAttempt != 1 {
		t.Fatalf("expected temporary failure, got %+v", out)
	}
	if out.OriginalError != "I had a problem looking up the product." {
		t.Fatalf("original error not carried: %+v", out)
	}
	key := p.keyArgs(toolx.SearchProduct, turn, args)
	if got := p.retries.Attempts(toolx.SearchProduct, key); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}

	out, err = handler(ctx, invocation(toolx.SearchProduct, args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != contractx.StatusSuccess {
		t.Fatalf("expected success, got %+v", out)
	}
	if got := p.retries.Attempts(toolx.SearchProduct, key); got != 0 {
		t.Fatalf("success must reset the counter, got %d", got)
	}
	if tool.calls != 2 {
		t.Fatalf("failures must not be cached, tool ran %d times", tool.calls)
	}
}

func TestTerminalFailureIsReturnedUnchanged(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx, _ := turnContext(p)
	original := contractx.ToolResult{
		Status:  contractx.StatusOutOfStock,
		Message: "Sorry, 'Milk' is out of stock at the moment.",
	}
	tool := &scriptedTool{results: []contractx.ToolResult{original}}
	args := map[string]any{toolx.ArgProductName: "milk", toolx.ArgQuantity: 1.0}

	out, err := p.Intercept(tool.handle)(ctx, invocation(toolx.AddToCart, args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != original.Status || out.Message != original.Message || out.RetryAttempt != 0 {
		t.Fatalf("terminal failure must pass through, got %+v", out)
	}
	if got := p.retries.Attempts(toolx.AddToCart, p.keyArgs(toolx.AddToCart, turn, args)); got != 0 {
		t.Fatalf("terminal failure must not increment, got %d", got)
	}
	if p.Metrics().Errors != 1 {
		t.Fatalf("expected one error, got %+v", p.Metrics())
	}
}

func TestRetryBudgetExhaustion(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx, _ := turnContext(p)
	tool := &scriptedTool{results: []contractx.ToolResult{contractx.Failure("connection reset")}}
	handler := p.Intercept(tool.handle)

	var statuses []contractx.ResultStatus
	for i := 0; i < 3; i++ {
		out, err := handler(ctx, invocation(toolx.ViewCart, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		statuses = append(statuses, out.Status)
	}
	want := []contractx.ResultStatus{contractx.StatusErrorTemporal, contractx.StatusErrorTemporal, contractx.StatusError}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("call %d: expected %s, got %s", i, want[i], statuses[i])
		}
	}
	if got := p.retries.Attempts(toolx.ViewCart, p.keyArgs(toolx.ViewCart, turn, nil)); got != 0 {
		t.Fatalf("exhaustion must reset the counter, got %d", got)
	}
}

func TestValidationRejectsBeforeTool(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx, rec := turnContext(p)
	tool := &scriptedTool{results: []contractx.ToolResult{contractx.Success("added", nil)}}
	handler := p.Intercept(tool.handle)

	cases := []struct {
		tool string
		args map[string]any
		want string
	}{
		{toolx.AddToCart, map[string]any{toolx.ArgProductName: "coca", toolx.ArgQuantity: 0.0}, "The quantity to add is invalid."},
		{toolx.AddToCart, map[string]any{toolx.ArgProductName: "coca", toolx.ArgQuantity: "two"}, "The quantity to add is invalid."},
		{toolx.UpdateQuantity, map[string]any{toolx.ArgProductName: "coca", toolx.ArgNewQuantity: -1.0}, "The new quantity cannot be negative."},
		{toolx.UpdateQuantity, map[string]any{toolx.ArgProductName: "coca"}, "The new quantity is invalid."},
		{toolx.SearchProduct, map[string]any{toolx.ArgProductName: "  "}, "The product name is invalid: it must not be empty."},
	}
	for _, tc := range cases {
		out, err := handler(ctx, invocation(tc.tool, tc.args))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Status != contractx.StatusError || out.Message != tc.want {
			t.Fatalf("%s: unexpected result %+v", tc.tool, out)
		}
	}
	if tool.calls != 0 {
		t.Fatalf("tool must not run, ran %d times", tool.calls)
	}
	if countEvents(rec, telemetry.EventToolStart) != len(cases) || countEvents(rec, telemetry.EventToolEnd) != len(cases) {
		t.Fatal("expected a start and end event per rejected call")
	}
}

func TestUnreadableArgumentsAreRejected(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx, rec := turnContext(p)
	tool := &scriptedTool{results: []contractx.ToolResult{contractx.Success("found", nil)}}
	handler := p.Intercept(tool.handle)

	inv := invocation(toolx.SearchProduct, map[string]any{})
	inv.ArgsErr = errors.New("unexpected end of JSON input")
	out, err := handler(ctx, inv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != contractx.StatusError || out.Message != "The arguments for search_product could not be read." {
		t.Fatalf("unexpected result %+v", out)
	}
	if tool.calls != 0 {
		t.Fatalf("tool must not run, ran %d times", tool.calls)
	}
	if countEvents(rec, telemetry.EventToolStart) != 1 || countEvents(rec, telemetry.EventToolEnd) != 1 {
		t.Fatal("expected a start and end event for the rejected call")
	}
	if m := rec.Metrics(); m.ToolCalls != 1 || m.Errors != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if st := p.Cache().Stats(); st.Misses != 0 || st.Hits != 0 {
		t.Fatalf("unreadable arguments must not touch the cache: %+v", st)
	}
}

func TestUpdateQuantityZeroIsAllowed(t *testing.T) {
	t.Parallel()

	if err := ValidateArgs(toolx.UpdateQuantity, map[string]any{toolx.ArgProductName: "coca", toolx.ArgNewQuantity: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ValidateArgs(toolx.AddToCart, map[string]any{toolx.ArgProductName: "coca"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDependenciesAreInjected(t *testing.T) {
	t.Parallel()

	notifier := toolx.LogNotifier{Logger: zerolog.Nop()}
	p := newTestPipeline(WithDependencies(contractx.Dependencies{Notifier: notifier}))
	ctx, _ := turnContext(p)
	tool := &scriptedTool{results: []contractx.ToolResult{contractx.Success("ok", nil)}}

	if _, err := p.Intercept(tool.handle)(ctx, invocation(toolx.RemoveFromCart, map[string]any{toolx.ArgProductName: "coca"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deps := tool.last.Deps
	if deps.BusinessID != 7 || deps.CustomerPhone != "5551234" || deps.Notifier == nil {
		t.Fatalf("unexpected dependencies: %+v", deps)
	}
	if _, leaked := tool.last.Args["__business_id"]; leaked {
		t.Fatal("scope must not leak into tool args")
	}
}

func TestCartMutationInvalidatesView(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx, _ := turnContext(p)
	view := &scriptedTool{results: []contractx.ToolResult{{Status: contractx.StatusEmpty, Message: "empty"}}}
	add := &scriptedTool{results: []contractx.ToolResult{contractx.Success("added", nil)}}

	viewHandler := p.Intercept(view.handle)
	if _, err := viewHandler(ctx, invocation(toolx.ViewCart, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := viewHandler(ctx, invocation(toolx.ViewCart, map[string]any{})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.calls != 1 {
		t.Fatalf("second view must hit the cache, ran %d times", view.calls)
	}

	args := map[string]any{toolx.ArgProductName: "coca", toolx.ArgQuantity: 1.0}
	if _, err := p.Intercept(add.handle)(ctx, invocation(toolx.AddToCart, args)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := viewHandler(ctx, invocation(toolx.ViewCart, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.calls != 2 {
		t.Fatalf("view must run again after a cart change, ran %d times", view.calls)
	}
}

func TestCustomersDoNotShareCartView(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx, _ := turnContext(p)
	view := &scriptedTool{results: []contractx.ToolResult{contractx.Success("1x Coca Cola", nil)}}
	handler := p.Intercept(view.handle)

	if _, err := handler(ctx, invocation(toolx.ViewCart, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	other := invocation(toolx.ViewCart, nil)
	other.Turn.UserID = "5559999"
	if _, err := handler(ctx, other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.calls != 2 {
		t.Fatalf("each customer needs their own view, ran %d times", view.calls)
	}

	search := &scriptedTool{results: []contractx.ToolResult{contractx.Success("found", nil)}}
	searchHandler := p.Intercept(search.handle)
	inv := invocation(toolx.SearchProduct, map[string]any{toolx.ArgProductName: "coca"})
	if _, err := searchHandler(ctx, inv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	otherBusiness := invocation(toolx.SearchProduct, map[string]any{toolx.ArgProductName: "coca"})
	otherBusiness.Turn.BusinessID = 8
	if _, err := searchHandler(ctx, otherBusiness); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if search.calls != 2 {
		t.Fatalf("businesses must not share catalog results, ran %d times", search.calls)
	}
}

func TestToolErrorIsReturned(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx, rec := turnContext(p)
	boom := errors.New("catalog is not configured")
	handler := p.Intercept(func(context.Context, *contractx.ToolInvocation) (contractx.ToolResult, error) {
		return contractx.ToolResult{}, boom
	})

	_, err := handler(ctx, invocation(toolx.SearchProduct, map[string]any{toolx.ArgProductName: "coca"}))
	if !errors.Is(err, boom) || !errors.Is(err, contractx.ErrToolExecution) {
		t.Fatalf("unexpected error: %v", err)
	}
	if countEvents(rec, telemetry.EventToolEnd) != 1 {
		t.Fatal("failed call must still be closed")
	}
	if len(rec.OpenTimings()) != 0 {
		t.Fatalf("tool timing left open: %v", rec.OpenTimings())
	}
	if got := rec.Metrics().Errors; got != 0 {
		t.Fatalf("a returned error is counted by the turn, not the tool call: got %d", got)
	}
}

func TestTurnHooks(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx := p.BeforeTurn(context.Background(), turn, 4)
	rec := telemetry.RecorderFrom(ctx)
	if rec == nil {
		t.Fatal("BeforeTurn must attach a recorder")
	}
	p.BeforeModel(ctx, turn, telemetry.LLMRequest{})
	p.AfterModel(ctx, turn, nil)
	p.AfterTurn(ctx, turn)

	snap := p.Metrics()
	if snap.TotalCalls != 1 || snap.LLMCalls != 1 {
		t.Fatalf("unexpected metrics: %+v", snap)
	}
	if len(rec.OpenTimings()) != 0 {
		t.Fatalf("timings left open: %v", rec.OpenTimings())
	}
}

func TestFailTurnClosesOpenTimings(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	ctx := p.BeforeTurn(context.Background(), turn, 0)
	p.BeforeModel(ctx, turn, telemetry.LLMRequest{})
	p.FailTurn(ctx, turn, errors.New("model unreachable"), "")

	rec := telemetry.RecorderFrom(ctx)
	if len(rec.OpenTimings()) != 0 {
		t.Fatalf("timings left open: %v", rec.OpenTimings())
	}
	if countEvents(rec, telemetry.EventCriticalError) != 1 {
		t.Fatal("expected a critical error event")
	}
	if p.Metrics().Errors != 1 {
		t.Fatalf("expected one error, got %+v", p.Metrics())
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) ToolMiddleware {
		return func(next ToolHandler) ToolHandler {
			return func(ctx context.Context, inv *contractx.ToolInvocation) (contractx.ToolResult, error) {
				order = append(order, name)
				return next(ctx, inv)
			}
		}
	}
	handler := Chain(func(context.Context, *contractx.ToolInvocation) (contractx.ToolResult, error) {
		order = append(order, "tool")
		return contractx.Success("ok", nil), nil
	}, mark("outer"), mark("inner"))

	if _, err := handler(context.Background(), invocation(toolx.ViewCart, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "tool" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestFromExecutorPassesDependencies(t *testing.T) {
	t.Parallel()

	var gotDeps contractx.Dependencies
	handler := FromExecutor(func(_ context.Context, name string, _ map[string]any, deps contractx.Dependencies) (contractx.ToolResult, error) {
		gotDeps = deps
		return contractx.Success(name, nil), nil
	})
	inv := invocation(toolx.ViewCart, nil)
	inv.Deps = contractx.Dependencies{BusinessID: 9}
	out, err := handler(context.Background(), inv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Message != toolx.ViewCart || gotDeps.BusinessID != 9 {
		t.Fatalf("unexpected result: %+v %+v", out, gotDeps)
	}
}
