package state

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStore keeps conversations in process. Values are stored encoded so
// callers never share message slices with the store.
type MemoryStore struct {
	items *xsync.MapOf[string, []byte]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: xsync.NewMapOf[string, []byte]()}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Conversation, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	raw, ok := s.items.Load(sessionID)
	if !ok {
		return nil, ErrStateNotFound
	}
	conv, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return conv, nil
}

func (s *MemoryStore) Save(_ context.Context, conv *Conversation) error {
	if err := conv.validate(); err != nil {
		return err
	}
	conv.UpdatedAt = time.Now().UTC()
	raw, err := encode(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	s.items.Store(conv.SessionID, raw)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	s.items.Delete(sessionID)
	return nil
}
