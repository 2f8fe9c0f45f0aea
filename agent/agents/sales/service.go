// Package sales runs one customer message through a business's sales
// assistant: history is loaded, the model calls tools through the interceptor
// pipeline until it answers, and the new exchange is saved.
package sales

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/interceptor"
	statex "github.com/tanpawarit/Chative-Sales-Interceptor/agent/state"
	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/telemetry"
	toolx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/tool"
)

const (
	// FailureReply is what the customer reads when the turn failed unexpectedly.
	FailureReply = "Sorry, there was a major technical issue, please try again later."
	// FallbackReply is used when the model ends without a usable answer.
	FallbackReply = "Sorry, I had a problem processing your message."

	defaultMaxIterations = 6
	defaultHistoryLimit  = 40
)

var (
	ErrInvalidMessage  = fmt.Errorf("%w: message text is empty", contractx.ErrInvalidRequest)
	ErrInvalidCustomer = fmt.Errorf("%w: customer phone is empty", contractx.ErrInvalidRequest)
	ErrInvalidBusiness = fmt.Errorf("%w: business id must be positive", contractx.ErrInvalidRequest)
)

type Config struct {
	// MaxIterations bounds the model calls of one turn.
	MaxIterations int
	// HistoryLimit is how many messages are kept between turns.
	HistoryLimit int
	Model        string
	Temperature  *float32
	MaxTokens    *int
}

type Request struct {
	BusinessID    int64  `json:"business_id"`
	CustomerPhone string `json:"customer_phone"`
	Text          string `json:"text"`
}

func (r Request) normalize() Request {
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.Text = strings.TrimSpace(r.Text)
	return r
}

func (r Request) Validate() error {
	switch {
	case r.BusinessID <= 0:
		return ErrInvalidBusiness
	case strings.TrimSpace(r.CustomerPhone) == "":
		return ErrInvalidCustomer
	case strings.TrimSpace(r.Text) == "":
		return ErrInvalidMessage
	}
	return nil
}

type Reply struct {
	Text         string `json:"reply"`
	SessionID    string `json:"session_id,omitempty"`
	InvocationID string `json:"invocation_id,omitempty"`
	Failed       bool   `json:"failed,omitempty"`
}

type Option func(*Service)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

type Service struct {
	model      einomodel.ToolCallingChatModel
	handler    interceptor.ToolHandler
	pipeline   *interceptor.Pipeline
	businesses contractx.Directory
	history    statex.Store
	cfg        Config

	runner compose.Runnable[*turnState, Reply]

	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

type turnState struct {
	req      Request
	business contractx.Business
	turn     contractx.TurnContext
	conv     *statex.Conversation
	prompt   string
	produced []*schema.Message
	reply    string
	started  bool
}

func New(
	chatModel einomodel.ToolCallingChatModel,
	tools []*schema.ToolInfo,
	exec toolx.Executor,
	pipeline *interceptor.Pipeline,
	businesses contractx.Directory,
	history statex.Store,
	cfg Config,
	opts ...Option,
) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if exec == nil {
		return nil, errors.New("tool executor is required")
	}
	if pipeline == nil {
		return nil, errors.New("interceptor pipeline is required")
	}
	if businesses == nil {
		return nil, errors.New("business directory is required")
	}
	if history == nil {
		history = statex.NewMemoryStore()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind sales tools: %v", contractx.ErrModelInvoke, err)
	}

	s := &Service{
		model:      toolModel,
		handler:    interceptor.Chain(interceptor.FromExecutor(exec), pipeline.Intercept),
		pipeline:   pipeline,
		businesses: businesses,
		history:    history,
		cfg:        cfg,
		logger:     log.Logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	runner, err := s.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.runner = runner
	return s, nil
}

// HandleMessage answers one customer message. Invalid requests and unknown
// businesses are returned as errors. Once the turn has started, every failure
// is recorded and turned into FailureReply with a nil error.
func (s *Service) HandleMessage(ctx context.Context, req Request) (reply Reply, err error) {
	req = req.normalize()
	if err := req.Validate(); err != nil {
		return Reply{}, err
	}

	if telemetry.RecorderFrom(ctx) == nil {
		ctx = telemetry.WithRecorder(ctx, s.pipeline.NewRecorder())
	}
	st := &turnState{req: req}

	defer func() {
		if rec := recover(); rec != nil {
			reply, err = s.failTurn(ctx, st, fmt.Errorf("panic: %v", rec), string(debug.Stack()))
		}
	}()

	out, err := s.runner.Invoke(ctx, st)
	if err != nil {
		return s.failTurn(ctx, st, err, string(debug.Stack()))
	}
	return out, nil
}

func (s *Service) failTurn(ctx context.Context, st *turnState, err error, stack string) (Reply, error) {
	if !st.started {
		return Reply{}, err
	}
	s.pipeline.FailTurn(ctx, st.turn, err, stack)
	s.logger.Error().
		Err(err).
		Str("session_id", st.turn.SessionID).
		Str("invocation_id", st.turn.InvocationID).
		Msg("sales: turn failed")
	return Reply{
		Text:         FailureReply,
		SessionID:    st.turn.SessionID,
		InvocationID: st.turn.InvocationID,
		Failed:       true,
	}, nil
}

/* -------------------------------- nodes ------------------------------- */

func (s *Service) prepareTurn(ctx context.Context, st *turnState) (*turnState, error) {
	business, err := s.businesses.LookupBusiness(ctx, st.req.BusinessID)
	if err != nil {
		return nil, err
	}
	st.business = business
	st.turn = contractx.TurnContext{
		SessionID:    SessionID(business.WhatsAppNumber, st.req.CustomerPhone),
		UserID:       st.req.CustomerPhone,
		AgentName:    AgentName(business.ID),
		InvocationID: s.newID(),
		BusinessID:   business.ID,
	}

	st.prompt, err = salesPrompt(business)
	if err != nil {
		return nil, err
	}

	conv, err := s.history.Load(ctx, st.turn.SessionID)
	switch {
	case errors.Is(err, statex.ErrStateNotFound):
		conv = statex.NewConversation(st.turn.SessionID, business.ID, st.req.CustomerPhone)
	case err != nil:
		s.logger.Error().
			Err(err).
			Str("session_id", st.turn.SessionID).
			Msg("sales: load history failed, starting a fresh conversation")
		conv = statex.NewConversation(st.turn.SessionID, business.ID, st.req.CustomerPhone)
	}
	st.conv = conv

	s.pipeline.BeforeTurn(ctx, st.turn, len(conv.Messages))
	st.started = true
	return st, nil
}

func (s *Service) saveHistory(ctx context.Context, st *turnState) (*turnState, error) {
	st.conv.Append(st.produced...)
	st.conv.Trim(s.cfg.HistoryLimit)
	st.conv.UpdatedAt = s.now().UTC()
	if err := s.history.Save(ctx, st.conv); err != nil {
		s.logger.Error().
			Err(err).
			Str("session_id", st.turn.SessionID).
			Msg("sales: save history failed")
	}
	return st, nil
}

func (s *Service) finalizeReply(ctx context.Context, st *turnState) (Reply, error) {
	s.pipeline.AfterTurn(ctx, st.turn)
	return Reply{
		Text:         st.reply,
		SessionID:    st.turn.SessionID,
		InvocationID: st.turn.InvocationID,
	}, nil
}

// SessionID identifies the conversation of a customer with a business.
func SessionID(businessWhatsApp, customerPhone string) string {
	return businessWhatsApp + "-" + customerPhone
}

func AgentName(businessID int64) string {
	return fmt.Sprintf("agent_for_%d", businessID)
}
