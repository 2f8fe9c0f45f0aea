package prompt

import (
	"strings"
	"testing"
)

func TestSalesPromptByBusinessType(t *testing.T) {
	t.Parallel()

	restaurant, err := Sales(BusinessProfile{Name: "Tacos Don Pepe", BusinessType: "taqueria"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(restaurant, "Tacos Don Pepe") || !strings.Contains(restaurant, "dishes") {
		t.Fatalf("unexpected restaurant prompt: %s", restaurant)
	}
	if !strings.Contains(restaurant, "friendly, concise and helpful") {
		t.Fatal("expected default personality")
	}

	grocery, err := Sales(BusinessProfile{Name: "Abarrotes Lupita", Personality: "warm", BusinessType: "abarrotes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(grocery, "kilograms") || strings.Contains(grocery, "dishes") {
		t.Fatalf("unexpected grocery prompt: %s", grocery)
	}
	if !strings.Contains(grocery, "Your personality: warm") {
		t.Fatalf("personality not rendered: %s", grocery)
	}
}
