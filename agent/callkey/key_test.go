package callkey

import (
	"strings"
	"testing"
)

func TestKeyIgnoresInsertionOrder(t *testing.T) {
	t.Parallel()

	a := map[string]any{}
	a["product_name"] = "bread"
	a["quantity"] = 2.0
	a["options"] = map[string]any{"z": 1, "a": 2}

	b := map[string]any{}
	b["options"] = map[string]any{"a": 2, "z": 1}
	b["quantity"] = 2.0
	b["product_name"] = "bread"

	if Key("add_to_cart", a) != Key("add_to_cart", b) {
		t.Fatalf("keys differ: %q vs %q", Key("add_to_cart", a), Key("add_to_cart", b))
	}
}

func TestKeyIncludesToolName(t *testing.T) {
	t.Parallel()

	args := map[string]any{"product_name": "bread"}
	if Key("search_product", args) == Key("add_to_cart", args) {
		t.Fatal("different tools must not share a key")
	}
	if got := Key("view_cart", nil); got != "view_cart:{}" {
		t.Fatalf("Key(nil) = %q, want %q", got, "view_cart:{}")
	}
}

func TestKeyFallsBackForUnserializableArgs(t *testing.T) {
	t.Parallel()

	args := map[string]any{"b": make(chan int), "a": 1}
	got := Key("search_product", args)
	if !strings.HasPrefix(got, "search_product:[a=1, b=") {
		t.Fatalf("unexpected fallback key: %q", got)
	}
}

func TestScopedDoesNotMutateArgs(t *testing.T) {
	t.Parallel()

	args := map[string]any{"product_name": "bread"}
	scoped := Scoped(args, map[string]any{"business": int64(7)})
	if len(args) != 1 {
		t.Fatalf("args mutated: %#v", args)
	}
	if scoped["__business"] != int64(7) {
		t.Fatalf("scope missing: %#v", scoped)
	}
	if Key("search_product", args) == Key("search_product", scoped) {
		t.Fatal("scope must change the key")
	}
}
