package store

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

func TestLikePattern(t *testing.T) {
	t.Parallel()

	if got := likePattern("  jamon   fud "); got != "%jamon%fud%" {
		t.Fatalf("unexpected pattern: %q", got)
	}
	if got := likePattern("50% off_x"); got != `%50\%%off\_x%` {
		t.Fatalf("wildcards must be escaped: %q", got)
	}
}

func TestFallbackWords(t *testing.T) {
	t.Parallel()

	got := fallbackWords("Coca de 600 ML")
	want := []string{"coca", "600"}
	if len(got) != len(want) {
		t.Fatalf("unexpected words: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected words: %v", got)
		}
	}
}

func TestToContract(t *testing.T) {
	t.Parallel()

	price := 12.5
	got := toContract(Product{ID: 3, Name: "Queso", AvailabilityStatus: contractx.AvailabilityConfirmed, Unit: "kg", Price: &price})
	if got.ID != 3 || got.Availability != contractx.AvailabilityConfirmed || got.Price == nil || *got.Price != 12.5 {
		t.Fatalf("unexpected product: %+v", got)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCheckDecision(t *testing.T) {
	t.Parallel()

	price := func(v float64) *float64 { return &v }
	cases := []struct {
		decision string
		price    *float64
		ok       bool
	}{
		{contractx.DecisionConfirm, price(25), true},
		{contractx.DecisionConfirm, nil, false},
		{contractx.DecisionConfirm, price(0), false},
		{contractx.DecisionConfirm, price(-3), false},
		{contractx.DecisionReject, nil, true},
		{"MAYBE", price(10), false},
	}
	for _, tc := range cases {
		err := checkDecision(tc.decision, tc.price)
		if tc.ok && err != nil {
			t.Fatalf("%s %v: unexpected error %v", tc.decision, tc.price, err)
		}
		if !tc.ok && !errors.Is(err, contractx.ErrInvalidRequest) {
			t.Fatalf("%s %v: expected ErrInvalidRequest, got %v", tc.decision, tc.price, err)
		}
	}
}

func TestApplyDecision(t *testing.T) {
	t.Parallel()

	price := 18.0
	p := Product{ID: 4, AvailabilityStatus: contractx.AvailabilityUnconfirmed}
	applyDecision(&p, contractx.DecisionConfirm, &price)
	price = 99
	if p.AvailabilityStatus != contractx.AvailabilityConfirmed || p.Price == nil || *p.Price != 18 {
		t.Fatalf("unexpected confirmed product: %+v", p)
	}

	q := Product{ID: 5, AvailabilityStatus: contractx.AvailabilityUnconfirmed}
	applyDecision(&q, contractx.DecisionReject, nil)
	if q.AvailabilityStatus != contractx.AvailabilityRejected || q.Price != nil {
		t.Fatalf("unexpected rejected product: %+v", q)
	}
}

func TestResolveProductValidatesBeforeQuery(t *testing.T) {
	t.Parallel()

	// a nil db would panic if the decision reached the query
	s := New(nil)
	_, err := s.ResolveProduct(context.Background(), 1, contractx.DecisionConfirm, nil)
	if !errors.Is(err, contractx.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
