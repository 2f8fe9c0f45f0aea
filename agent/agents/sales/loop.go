package sales

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	jsoniter "github.com/json-iterator/go"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
	promptx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/prompt"
	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/telemetry"
)

var toolJSON = jsoniter.ConfigCompatibleWithStandardLibrary

func salesPrompt(business contractx.Business) (string, error) {
	return promptx.Sales(promptx.BusinessProfile{
		Name:         business.Name,
		Personality:  business.Personality,
		BusinessType: business.BusinessType,
	})
}

// runAgent alternates model calls and tool calls until the model answers
// without requesting a tool or the iteration budget runs out.
func (s *Service) runAgent(ctx context.Context, st *turnState) (*turnState, error) {
	messages := make([]*schema.Message, 0, len(st.conv.Messages)+2)
	messages = append(messages, schema.SystemMessage(st.prompt))
	messages = append(messages, st.conv.Messages...)

	user := schema.UserMessage(st.req.Text)
	messages = append(messages, user)
	st.produced = append(st.produced, user)

	for i := 0; i < s.cfg.MaxIterations; i++ {
		s.pipeline.BeforeModel(ctx, st.turn, telemetry.LLMRequest{
			Model:       s.cfg.Model,
			Messages:    messages,
			Temperature: s.cfg.Temperature,
			MaxTokens:   s.cfg.MaxTokens,
		})
		resp, err := s.model.Generate(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("%w: sales model: %v", contractx.ErrModelInvoke, err)
		}
		if resp == nil {
			return nil, fmt.Errorf("%w: sales model returned no message", contractx.ErrModelInvoke)
		}
		s.pipeline.AfterModel(ctx, st.turn, resp)

		messages = append(messages, resp)
		st.produced = append(st.produced, resp)

		if len(resp.ToolCalls) == 0 {
			st.reply = strings.TrimSpace(resp.Content)
			if st.reply == "" {
				s.logger.Warn().
					Str("session_id", st.turn.SessionID).
					Msg("sales: final answer has no text")
				st.reply = FallbackReply
			}
			return st, nil
		}

		for _, call := range resp.ToolCalls {
			msg, err := s.callTool(ctx, st.turn, call)
			if err != nil {
				return nil, err
			}
			messages = append(messages, msg)
			st.produced = append(st.produced, msg)
		}
	}

	s.logger.Warn().
		Int("max_iterations", s.cfg.MaxIterations).
		Str("session_id", st.turn.SessionID).
		Msg("sales: iteration budget exhausted")
	if r := telemetry.RecorderFrom(ctx); r != nil {
		r.UpdateMetric(telemetry.MetricErrors, 1)
	}
	st.reply = FallbackReply
	return st, nil
}

// callTool runs one model tool call through the interceptor chain and returns
// the tool message answering it.
func (s *Service) callTool(ctx context.Context, turn contractx.TurnContext, call schema.ToolCall) (*schema.Message, error) {
	inv := &contractx.ToolInvocation{
		ToolName: strings.TrimSpace(call.Function.Name),
		Args:     map[string]any{},
		Turn:     turn,
	}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := toolJSON.UnmarshalFromString(raw, &inv.Args); err != nil {
			inv.Args = map[string]any{}
			inv.ArgsErr = fmt.Errorf("%w: decode %s arguments: %v", contractx.ErrValidation, inv.ToolName, err)
		}
	}

	result, err := s.handler(ctx, inv)
	if err != nil {
		return nil, err
	}
	return toolMessage(call, result)
}

func toolMessage(call schema.ToolCall, result contractx.ToolResult) (*schema.Message, error) {
	content, err := toolJSON.MarshalToString(result)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s result: %v", contractx.ErrValidation, call.Function.Name, err)
	}
	return schema.ToolMessage(content, call.ID), nil
}
