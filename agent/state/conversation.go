// Package state persists the conversation history of a customer with a
// business between turns.
package state

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	jsoniter "github.com/json-iterator/go"
)

var (
	ErrStateNotFound  = errors.New("conversation not found")
	ErrNilState       = errors.New("conversation is nil")
	ErrInvalidSession = errors.New("session id is empty")
)

var stateJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Conversation is the history the model sees at the start of a turn.
type Conversation struct {
	SessionID  string            `json:"session_id"`
	BusinessID int64             `json:"business_id"`
	UserID     string            `json:"user_id"`
	Messages   []*schema.Message `json:"messages"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Store is the persistence contract used by the sales agent.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, sessionID string) error
}

func NewConversation(sessionID string, businessID int64, userID string) *Conversation {
	return &Conversation{
		SessionID:  sessionID,
		BusinessID: businessID,
		UserID:     userID,
		UpdatedAt:  time.Now().UTC(),
	}
}

// Append adds messages, dropping nil entries.
func (c *Conversation) Append(msgs ...*schema.Message) {
	for _, m := range msgs {
		if m != nil {
			c.Messages = append(c.Messages, m)
		}
	}
}

// Trim keeps at most limit messages. The cut never starts on a tool message,
// whose assistant tool call would otherwise be lost.
func (c *Conversation) Trim(limit int) {
	if limit <= 0 || len(c.Messages) <= limit {
		return
	}
	start := len(c.Messages) - limit
	for start < len(c.Messages) && c.Messages[start].Role == schema.Tool {
		start++
	}
	c.Messages = append([]*schema.Message(nil), c.Messages[start:]...)
}

func (c *Conversation) validate() error {
	if c == nil {
		return ErrNilState
	}
	if strings.TrimSpace(c.SessionID) == "" {
		return ErrInvalidSession
	}
	return nil
}

func encode(c *Conversation) ([]byte, error) {
	return stateJSON.Marshal(c)
}

func decode(raw []byte) (*Conversation, error) {
	var c Conversation
	if err := stateJSON.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
