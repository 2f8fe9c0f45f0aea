// Package store keeps businesses, the product catalog and pending orders in
// Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

var ErrBusinessNotFound = contractx.ErrUnknownBusiness

var (
	_ contractx.Catalog   = (*Store)(nil)
	_ contractx.Cart      = (*Store)(nil)
	_ contractx.Directory = (*Store)(nil)
)

type Config struct {
	DSN          string        `envconfig:"DSN" required:"true"`
	SlowQuery    time.Duration `split_words:"true" default:"200ms"`
	MaxOpenConns int           `split_words:"true" default:"10"`
}

type Store struct {
	db *bun.DB
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: database dsn is required", contractx.ErrValidation)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(queryLogger{slow: cfg.SlowQuery})

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing connection.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) BusinessByID(ctx context.Context, id int64) (*Business, error) {
	var b Business
	err := s.db.NewSelect().Model(&b).Where("b.id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id=%d", ErrBusinessNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load business %d: %w", id, err)
	}
	return &b, nil
}

func (s *Store) LookupBusiness(ctx context.Context, id int64) (contractx.Business, error) {
	b, err := s.BusinessByID(ctx, id)
	if err != nil {
		return contractx.Business{}, err
	}
	return contractx.Business{
		ID:             b.ID,
		Name:           b.Name,
		WhatsAppNumber: b.WhatsAppNumber,
		BusinessType:   b.BusinessType,
		Personality:    b.PersonalityDescription,
	}, nil
}

type queryLogger struct {
	slow time.Duration
}

func (h queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		log.Error().Err(event.Err).Dur("elapsed", elapsed).Str("query", event.Query).Msg("store: query failed")
	case h.slow > 0 && elapsed > h.slow:
		log.Warn().Dur("elapsed", elapsed).Str("query", event.Query).Msg("store: slow query")
	default:
		log.Debug().Dur("elapsed", elapsed).Str("operation", event.Operation()).Msg("store: query")
	}
}
