package telemetry

import (
	"time"

	"github.com/rs/zerolog"
)

type EventType string

const (
	EventAgentStart    EventType = "AGENT_START"
	EventAgentEnd      EventType = "AGENT_END"
	EventLLMRequest    EventType = "LLM_REQUEST"
	EventLLMResponse   EventType = "LLM_RESPONSE"
	EventToolStart     EventType = "TOOL_START"
	EventToolEnd       EventType = "TOOL_END"
	EventToolCacheHit  EventType = "TOOL_CACHE_HIT"
	EventTiming        EventType = "TIMING"
	EventCriticalError EventType = "AGENT_CRITICAL_ERROR"
)

type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelError, LevelCritical:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Event is one entry of a turn's audit trail. Events are never modified after
// they are recorded.
type Event struct {
	Type         EventType      `json:"event_type"`
	Level        Level          `json:"level"`
	Timestamp    time.Time      `json:"timestamp"`
	AgentName    string         `json:"agent_name,omitempty"`
	InvocationID string         `json:"invocation_id,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
}
