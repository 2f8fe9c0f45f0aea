package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultKeyPrefix   = "chative:conversation:"
	defaultTTL         = 24 * time.Hour
	maxResponseSize    = 2 << 20
	upstashNullPayload = "null"
)

type UpstashConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" split_words:"true" default:"24h"`
}

func (c UpstashConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Token) != ""
}

type UpstashOption func(*UpstashStore)

func WithKeyPrefix(prefix string) UpstashOption {
	return func(s *UpstashStore) {
		if p := strings.TrimSpace(prefix); p != "" {
			s.keyPrefix = p
		}
	}
}

func WithHTTPClient(client *http.Client) UpstashOption {
	return func(s *UpstashStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashStore keeps conversations in Upstash Redis through its REST API.
type UpstashStore struct {
	baseURL    string
	token      string
	keyPrefix  string
	ttl        time.Duration
	httpClient *http.Client
}

var _ Store = (*UpstashStore)(nil)

type restReply struct {
	Result any    `json:"result"`
	Error  string `json:"error"`
}

func NewUpstashStore(cfg UpstashConfig, opts ...UpstashOption) (*UpstashStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid upstash redis url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("conversation ttl must be >= 0")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}

	s := &UpstashStore{
		baseURL:    baseURL,
		token:      token,
		keyPrefix:  defaultKeyPrefix,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *UpstashStore) Load(ctx context.Context, sessionID string) (*Conversation, error) {
	key, err := s.key(sessionID)
	if err != nil {
		return nil, err
	}
	reply, err := s.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	payload, ok := reply.Result.(string)
	if !ok || payload == "" || payload == upstashNullPayload {
		return nil, ErrStateNotFound
	}
	conv, err := decode([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return conv, nil
}

func (s *UpstashStore) Save(ctx context.Context, conv *Conversation) error {
	if err := conv.validate(); err != nil {
		return err
	}
	key, err := s.key(conv.SessionID)
	if err != nil {
		return err
	}
	conv.UpdatedAt = time.Now().UTC()
	raw, err := encode(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	_, err = s.do(ctx, "SET", key, string(raw), "EX", int64((s.ttl+time.Second-1)/time.Second))
	return err
}

func (s *UpstashStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.key(sessionID)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, "DEL", key)
	return err
}

func (s *UpstashStore) key(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrInvalidSession
	}
	return s.keyPrefix + sessionID, nil
}

// do sends one Redis command as a JSON array.
func (s *UpstashStore) do(ctx context.Context, command ...any) (*restReply, error) {
	body, err := stateJSON.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("encode redis command: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var reply restReply
	if err := stateJSON.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return &reply, nil
}
