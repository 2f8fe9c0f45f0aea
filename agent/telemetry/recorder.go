// Package telemetry records the timed audit trail of an agent turn.
//
// A Recorder belongs to exactly one in-flight turn: its timing stack must not be
// shared between concurrent turns. Counters live in Metrics, which is shared by
// every Recorder in the process. Telemetry never fails the turn; every problem
// inside the recorder is logged and swallowed.
package telemetry

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

const (
	KeyAgent = "agent_execution"
	KeyLLM   = "llm_call"

	defaultPreviewLimit = 80
)

// ToolKey is the timing key of a tool execution.
func ToolKey(tool string) string {
	return "tool_" + tool
}

var payloadJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// LLMRequest is the part of an outgoing model call the recorder reports on.
type LLMRequest struct {
	Model       string
	Messages    []*schema.Message
	Temperature *float32
	MaxTokens   *int
}

type timingSpan struct {
	key   string
	start time.Time
	ctx   context.Context
	span  trace.Span
}

type Recorder struct {
	mu     sync.Mutex
	stack  []timingSpan
	events []Event

	metrics      *Metrics
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
	previewLimit int
}

type Option func(*Recorder)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithTracer mirrors every timing span as an OpenTelemetry span.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Recorder) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

func WithPreviewLimit(limit int) Option {
	return func(r *Recorder) {
		if limit > 0 {
			r.previewLimit = limit
		}
	}
}

func NewRecorder(metrics *Metrics, opts ...Option) *Recorder {
	if metrics == nil {
		metrics = NewMetrics()
	}
	r := &Recorder{
		metrics:      metrics,
		logger:       log.Logger,
		tracer:       noop.NewTracerProvider().Tracer(""),
		now:          time.Now,
		previewLimit: defaultPreviewLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

/* ------------------------------- timing ------------------------------- */

// StartTiming pushes key onto the timing stack. Keys need not be unique.
func (r *Recorder) StartTiming(ctx context.Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent := ctx
	if n := len(r.stack); n > 0 {
		parent = r.stack[n-1].ctx
	}
	spanCtx, span := r.tracer.Start(parent, key)
	r.stack = append(r.stack, timingSpan{
		key:   key,
		start: r.now(),
		ctx:   spanCtx,
		span:  span,
	})
}

// EndTiming closes key if it is on top of the stack and returns its duration in
// milliseconds. Any other key is ignored and yields 0.
func (r *Recorder) EndTiming(key string) float64 {
	return r.endTiming(key, nil)
}

func (r *Recorder) endTiming(key string, annotate func(trace.Span)) float64 {
	r.mu.Lock()
	n := len(r.stack)
	if n == 0 || r.stack[n-1].key != key {
		r.mu.Unlock()
		return 0
	}
	top := r.stack[n-1]
	r.stack = r.stack[:n-1]
	r.mu.Unlock()

	durationMs := round2(float64(r.now().Sub(top.start)) / float64(time.Millisecond))
	if annotate != nil {
		annotate(top.span)
	}
	top.span.SetAttributes(attribute.Float64("duration_ms", durationMs))
	top.span.End()

	r.emit(EventTiming, LevelInfo, contractx.TurnContext{}, map[string]any{
		"operation":   key,
		"duration_ms": durationMs,
	})
	return durationMs
}

// Abort force-closes key together with everything opened after it. It is the
// turn boundary's way to flush spans left open by a failed phase. Returns 0 if
// key is not open.
func (r *Recorder) Abort(key string) float64 {
	r.mu.Lock()
	idx := -1
	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i].key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return 0
	}
	abandoned := r.stack[idx+1:]
	r.stack = r.stack[:idx+1]
	r.mu.Unlock()

	for i := len(abandoned) - 1; i >= 0; i-- {
		abandoned[i].span.SetStatus(codes.Error, "abandoned")
		abandoned[i].span.End()
	}
	return r.EndTiming(key)
}

// OpenTimings lists the open keys, bottom first.
func (r *Recorder) OpenTimings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.stack))
	for _, s := range r.stack {
		keys = append(keys, s.key)
	}
	return keys
}

/* ------------------------------- metrics ------------------------------ */

func (r *Recorder) UpdateMetric(name string, delta float64) bool {
	return r.metrics.Update(name, delta)
}

func (r *Recorder) Metrics() Snapshot {
	return r.metrics.Snapshot()
}

/* ------------------------------- phases ------------------------------- */

func (r *Recorder) LogAgentStart(ctx context.Context, turn contractx.TurnContext, historyMessages int) {
	r.StartTiming(ctx, KeyAgent)
	r.UpdateMetric(MetricTotalCalls, 1)
	r.emit(EventAgentStart, LevelInfo, turn, map[string]any{
		"business_id":      turn.BusinessID,
		"history_messages": historyMessages,
	})
}

func (r *Recorder) LogAgentEnd(turn contractx.TurnContext) float64 {
	durationMs := r.EndTiming(KeyAgent)
	r.UpdateMetric(MetricTotalAgentDuration, durationMs)
	r.emit(EventAgentEnd, LevelInfo, turn, map[string]any{
		"execution_time_ms": durationMs,
	})
	return durationMs
}

func (r *Recorder) LogLLMRequest(ctx context.Context, turn contractx.TurnContext, req LLMRequest) {
	r.StartTiming(ctx, KeyLLM)
	r.UpdateMetric(MetricLLMCalls, 1)

	chars := 0
	for _, msg := range req.Messages {
		if msg != nil {
			chars += utf8.RuneCountInString(msg.Content)
		}
	}
	r.emit(EventLLMRequest, LevelInfo, turn, map[string]any{
		"model":           req.Model,
		"message_count":   len(req.Messages),
		"estimated_chars": chars,
		"model_config": map[string]any{
			"temperature":       req.Temperature,
			"max_output_tokens": req.MaxTokens,
		},
	})
}

func (r *Recorder) LogLLMResponse(turn contractx.TurnContext, resp *schema.Message) float64 {
	durationMs := r.EndTiming(KeyLLM)

	var (
		preview       string
		length        int
		functionCalls = []string{}
	)
	if resp != nil {
		length = utf8.RuneCountInString(resp.Content)
		preview = truncate(resp.Content, r.previewLimit)
		for _, call := range resp.ToolCalls {
			functionCalls = append(functionCalls, call.Function.Name)
		}
	}
	r.emit(EventLLMResponse, LevelInfo, turn, map[string]any{
		"response_length":  length,
		"response_preview": preview,
		"function_calls":   functionCalls,
		"response_time_ms": durationMs,
	})
	return durationMs
}

func (r *Recorder) LogToolStart(ctx context.Context, turn contractx.TurnContext, tool string, args map[string]any) {
	r.StartTiming(ctx, ToolKey(tool))
	r.UpdateMetric(MetricToolCalls, 1)
	r.emit(EventToolStart, LevelInfo, turn, map[string]any{
		"tool_name": tool,
		"args":      maps.Clone(args),
	})
}

// LogToolEnd closes the tool timing and classifies the result. Failures count
// towards the errors metric.
func (r *Recorder) LogToolEnd(turn contractx.TurnContext, tool string, result contractx.ToolResult) float64 {
	return r.logToolEnd(turn, tool, result, true)
}

// LogToolAbort closes a tool call that failed with a Go error. The error is
// not counted here: it propagates and is counted once when the turn fails.
func (r *Recorder) LogToolAbort(turn contractx.TurnContext, tool string, err error) float64 {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return r.logToolEnd(turn, tool, contractx.Failure(msg), false)
}

func (r *Recorder) logToolEnd(turn contractx.TurnContext, tool string, result contractx.ToolResult, countError bool) float64 {
	success := result.Succeeded()
	durationMs := r.endTiming(ToolKey(tool), func(span trace.Span) {
		span.SetAttributes(
			attribute.String("tool.name", tool),
			attribute.String("tool.status", string(result.Status)),
		)
		if !success {
			span.SetStatus(codes.Error, result.Message)
		}
	})

	level := LevelInfo
	if !success {
		level = LevelError
		if countError {
			r.UpdateMetric(MetricErrors, 1)
		}
	}
	r.emit(EventToolEnd, level, turn, map[string]any{
		"tool_name":         tool,
		"success":           success,
		"response_status":   string(result.Status),
		"response_size":     sizeOf(result),
		"execution_time_ms": durationMs,
	})
	return durationMs
}

func (r *Recorder) LogCacheHit(turn contractx.TurnContext, tool string, args map[string]any) {
	r.UpdateMetric(MetricToolCacheHits, 1)
	r.emit(EventToolCacheHit, LevelInfo, turn, map[string]any{
		"tool_name": tool,
		"args":      maps.Clone(args),
	})
}

// LogCritical records a failure that escaped the turn and counts it as an error.
func (r *Recorder) LogCritical(turn contractx.TurnContext, err error, stack string) {
	r.UpdateMetric(MetricErrors, 1)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.emit(EventCriticalError, LevelCritical, turn, map[string]any{
		"error_message": msg,
		"traceback":     stack,
	})
}

// Events returns the events recorded so far, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) emit(eventType EventType, level Level, turn contractx.TurnContext, fields map[string]any) {
	ev := Event{
		Type:         eventType,
		Level:        level,
		Timestamp:    r.now(),
		AgentName:    turn.AgentName,
		InvocationID: turn.InvocationID,
		SessionID:    turn.SessionID,
		UserID:       turn.UserID,
		Fields:       fields,
	}

	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()

	raw, err := payloadJSON.Marshal(fields)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("event_type", string(eventType)).
			Msg("telemetry: serialize event")
		return
	}

	r.logger.WithLevel(level.zerolog()).
		Str("event_type", string(eventType)).
		Str("severity", string(level)).
		Time("event_time", ev.Timestamp).
		Str("agent_name", ev.AgentName).
		Str("invocation_id", ev.InvocationID).
		Str("session_id", ev.SessionID).
		Str("user_id", ev.UserID).
		RawJSON("data", raw).
		Msg(string(eventType))
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

func sizeOf(result contractx.ToolResult) int {
	raw, err := payloadJSON.Marshal(result)
	if err != nil {
		return len(fmt.Sprint(result))
	}
	return len(raw)
}
