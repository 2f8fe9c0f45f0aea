package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

const minFallbackWord = 3

// FindProduct matches query against product names of one business: first as
// an ordered substring pattern, then word by word, preferring the shortest
// name. Nothing matching is reported as (nil, nil).
func (s *Store) FindProduct(ctx context.Context, businessID int64, query string) (*contractx.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var p Product
	err := s.db.NewSelect().Model(&p).
		Where("p.business_id = ?", businessID).
		Where("p.name ILIKE ?", likePattern(query)).
		OrderExpr("length(p.name) ASC, p.id ASC").
		Limit(1).
		Scan(ctx)
	if err == nil {
		return toContract(p), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: find product: %w", err)
	}

	words := fallbackWords(query)
	if len(words) == 0 {
		return nil, nil
	}
	p = Product{}
	err = s.db.NewSelect().Model(&p).
		Where("p.business_id = ?", businessID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, w := range words {
				q = q.WhereOr("p.name ILIKE ?", "%"+escapeLike(w)+"%")
			}
			return q
		}).
		OrderExpr("length(p.name) ASC, p.id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find product by words: %w", err)
	}
	return toContract(p), nil
}

// likePattern turns "jamon fud" into "%jamon%fud%".
func likePattern(query string) string {
	return "%" + strings.Join(strings.Fields(escapeLike(query)), "%") + "%"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func fallbackWords(query string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(w)) >= minFallbackWord {
			out = append(out, w)
		}
	}
	return out
}

func toContract(p Product) *contractx.Product {
	return &contractx.Product{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Availability: p.AvailabilityStatus,
		Unit:         p.Unit,
		Price:        p.Price,
	}
}
