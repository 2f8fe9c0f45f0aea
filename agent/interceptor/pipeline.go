// Package interceptor sits between the model's tool-calling loop and the tools.
// Every tool call passes through a cache lookup, argument validation and
// dependency injection on the way in, and through classification, cache
// population and the retry protocol on the way out. Turn and model hooks only
// record telemetry.
package interceptor

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	cachex "github.com/tanpawarit/Chative-Sales-Interceptor/agent/cache"
	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/callkey"
	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
	retryx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/retry"
	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/telemetry"
)

const temporaryFailureMessage = "There was a temporary problem running %s. The system may try again. Please wait or try a different action."

type Pipeline struct {
	cache        *cachex.Cache
	retries      *retryx.Coordinator
	metrics      *telemetry.Metrics
	policy       Policy
	validate     Validator
	deps         contractx.Dependencies
	logger       zerolog.Logger
	recorderOpts []telemetry.Option
}

type Option func(*Pipeline)

func WithPolicy(policy Policy) Option {
	return func(p *Pipeline) {
		p.policy = policy
	}
}

func WithValidator(v Validator) Option {
	return func(p *Pipeline) {
		if v != nil {
			p.validate = v
		}
	}
}

// WithDependencies sets the infrastructure injected into every tool call. The
// business and customer are taken from the turn.
func WithDependencies(deps contractx.Dependencies) Option {
	return func(p *Pipeline) {
		p.deps = deps
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRecorderOptions configures the recorders the pipeline creates per turn.
func WithRecorderOptions(opts ...telemetry.Option) Option {
	return func(p *Pipeline) {
		p.recorderOpts = append(p.recorderOpts, opts...)
	}
}

func New(cache *cachex.Cache, retries *retryx.Coordinator, metrics *telemetry.Metrics, opts ...Option) *Pipeline {
	if cache == nil {
		cache = cachex.New()
	}
	if retries == nil {
		retries = retryx.New(retryx.DefaultConfig())
	}
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	p := &Pipeline{
		cache:    cache,
		retries:  retries,
		metrics:  metrics,
		policy:   DefaultPolicy(),
		validate: ValidateArgs,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Pipeline) Cache() *cachex.Cache {
	return p.cache
}

func (p *Pipeline) Metrics() telemetry.Snapshot {
	return p.metrics.Snapshot()
}

// NewRecorder returns a recorder bound to the pipeline's shared metrics.
func (p *Pipeline) NewRecorder() *telemetry.Recorder {
	opts := append([]telemetry.Option{telemetry.WithLogger(p.logger)}, p.recorderOpts...)
	return telemetry.NewRecorder(p.metrics, opts...)
}

func (p *Pipeline) recorder(ctx context.Context) *telemetry.Recorder {
	if r := telemetry.RecorderFrom(ctx); r != nil {
		return r
	}
	p.logger.Debug().Msg("interceptor: no recorder in context, timings of this call are not nested")
	return p.NewRecorder()
}

/* -------------------------------- turn -------------------------------- */

// BeforeTurn opens the turn. The returned context carries the turn's recorder
// and must be used for every later hook of the same turn.
func (p *Pipeline) BeforeTurn(ctx context.Context, turn contractx.TurnContext, historyMessages int) context.Context {
	r := telemetry.RecorderFrom(ctx)
	if r == nil {
		r = p.NewRecorder()
		ctx = telemetry.WithRecorder(ctx, r)
	}
	r.LogAgentStart(ctx, turn, historyMessages)
	return ctx
}

func (p *Pipeline) AfterTurn(ctx context.Context, turn contractx.TurnContext) float64 {
	return p.recorder(ctx).LogAgentEnd(turn)
}

// FailTurn records a failure that escaped the turn and force-closes whatever
// timing the turn left open.
func (p *Pipeline) FailTurn(ctx context.Context, turn contractx.TurnContext, err error, stack string) {
	r := p.recorder(ctx)
	r.LogCritical(turn, err, stack)
	if ms := r.Abort(telemetry.KeyAgent); ms > 0 {
		r.UpdateMetric(telemetry.MetricTotalAgentDuration, ms)
	}
}

/* -------------------------------- model ------------------------------- */

func (p *Pipeline) BeforeModel(ctx context.Context, turn contractx.TurnContext, req telemetry.LLMRequest) {
	p.recorder(ctx).LogLLMRequest(ctx, turn, req)
}

func (p *Pipeline) AfterModel(ctx context.Context, turn contractx.TurnContext, resp *schema.Message) {
	p.recorder(ctx).LogLLMResponse(turn, resp)
}

/* -------------------------------- tools ------------------------------- */

// BeforeTool returns a result when the call must not reach the tool: a cache
// hit or rejected arguments. Otherwise it injects dependencies and returns nil.
func (p *Pipeline) BeforeTool(ctx context.Context, inv *contractx.ToolInvocation) *contractx.ToolResult {
	r := p.recorder(ctx)
	if inv.ArgsErr != nil {
		r.LogToolStart(ctx, inv.Turn, inv.ToolName, inv.Args)
		p.logger.Warn().
			Str("tool", inv.ToolName).
			Str("invocation_id", inv.Turn.InvocationID).
			Err(inv.ArgsErr).
			Msg("interceptor: unreadable tool arguments")
		result := contractx.Failure(fmt.Sprintf("The arguments for %s could not be read.", inv.ToolName))
		r.LogToolEnd(inv.Turn, inv.ToolName, result)
		return &result
	}

	keyArgs := p.keyArgs(inv.ToolName, inv.Turn, inv.Args)
	if _, cacheable := p.policy.cacheTTL(inv.ToolName); cacheable {
		if cached, ok := p.cache.Get(inv.ToolName, keyArgs); ok {
			r.LogCacheHit(inv.Turn, inv.ToolName, inv.Args)
			return &cached
		}
	}

	r.LogToolStart(ctx, inv.Turn, inv.ToolName, inv.Args)

	if err := p.validate(inv.ToolName, inv.Args); err != nil {
		p.logger.Warn().
			Str("tool", inv.ToolName).
			Str("invocation_id", inv.Turn.InvocationID).
			Err(err).
			Msg("interceptor: rejected tool arguments")
		result := contractx.Failure(err.Error())
		r.LogToolEnd(inv.Turn, inv.ToolName, result)
		return &result
	}

	inv.Deps = p.deps
	inv.Deps.BusinessID = inv.Turn.BusinessID
	inv.Deps.CustomerPhone = inv.Turn.UserID
	return nil
}

// AfterTool classifies the tool's result and returns what the model sees.
func (p *Pipeline) AfterTool(ctx context.Context, inv *contractx.ToolInvocation, result contractx.ToolResult) contractx.ToolResult {
	r := p.recorder(ctx)
	r.LogToolEnd(inv.Turn, inv.ToolName, result)

	keyArgs := p.keyArgs(inv.ToolName, inv.Turn, inv.Args)
	logger := p.logger.With().
		Str("tool", inv.ToolName).
		Str("invocation_id", inv.Turn.InvocationID).
		Logger()

	if result.Succeeded() {
		p.retries.Reset(inv.ToolName, keyArgs)
		if ttl, ok := p.policy.cacheTTL(inv.ToolName); ok {
			p.cache.Set(inv.ToolName, keyArgs, result, ttl)
		}
		for _, stale := range p.policy.Invalidates[inv.ToolName] {
			p.cache.Delete(stale, p.keyArgs(stale, inv.Turn, nil))
		}
		return result
	}

	decision := p.retries.Record(inv.ToolName, keyArgs, result.Message)
	switch {
	case decision.Retry:
		logger.Warn().
			Int("attempt", decision.Attempt).
			Int("max_retries", p.retries.MaxRetries()).
			Dur("advised_delay", p.retries.Delay(inv.ToolName, keyArgs)).
			Msg("interceptor: retryable tool failure, informing model")
		return contractx.ToolResult{
			Status:        contractx.StatusErrorTemporal,
			Message:       fmt.Sprintf(temporaryFailureMessage, inv.ToolName),
			OriginalError: result.Message,
			RetryAttempt:  decision.Attempt,
		}
	case decision.Exhausted:
		logger.Error().Int("attempts", decision.Attempt).Msg("interceptor: retry budget exhausted")
	default:
		logger.Info().Str("status", string(result.Status)).Msg("interceptor: non-retryable tool failure")
	}
	return result
}

// Intercept is the pipeline as a tool middleware. An error from the tool is
// recorded as a failed call and returned untouched; retries are not engaged.
func (p *Pipeline) Intercept(next ToolHandler) ToolHandler {
	return func(ctx context.Context, inv *contractx.ToolInvocation) (contractx.ToolResult, error) {
		if short := p.BeforeTool(ctx, inv); short != nil {
			return *short, nil
		}

		result, err := next(ctx, inv)
		if err != nil {
			p.recorder(ctx).LogToolAbort(inv.Turn, inv.ToolName, err)
			return contractx.ToolResult{}, fmt.Errorf("%w: %s: %w", contractx.ErrToolExecution, inv.ToolName, err)
		}
		return p.AfterTool(ctx, inv, result), nil
	}
}

// keyArgs adds the tenant scope so two businesses, or two customers of a
// customer-scoped tool, never share a cache entry or a retry counter.
func (p *Pipeline) keyArgs(tool string, turn contractx.TurnContext, args map[string]any) map[string]any {
	scope := map[string]any{"business_id": turn.BusinessID}
	if p.policy.CustomerScoped[tool] {
		scope["customer"] = turn.UserID
	}
	return callkey.Scoped(args, scope)
}
