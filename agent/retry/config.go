package retry

import (
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

type Config struct {
	MaxRetries int           `envconfig:"MAX_RETRIES" split_words:"true" default:"2"`
	BaseDelay  time.Duration `envconfig:"BASE_DELAY" split_words:"true" default:"500ms"`
	MaxDelay   time.Duration `envconfig:"MAX_DELAY" split_words:"true" default:"5s"`
}

func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: retry max retries must not be negative", contractx.ErrValidation)
	}
	if c.BaseDelay <= 0 || c.MaxDelay <= 0 {
		return fmt.Errorf("%w: retry delays must be positive", contractx.ErrValidation)
	}
	if c.BaseDelay > c.MaxDelay {
		return fmt.Errorf("%w: retry base delay exceeds max delay", contractx.ErrValidation)
	}
	return nil
}
