package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/catalog"
)

func TestProductSearchMatchesAndRanks(t *testing.T) {
	idx := NewProductIndex(catalog.DefaultProducts())

	got, err := idx.Search(context.Background(), "tumbler")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected tumbler matches, got none")
	}
	for _, p := range got {
		if p.Price <= 0 {
			t.Fatalf("product %q has no price", p.Name)
		}
	}
}

func TestProductSearchUnmatchedQueryReturnsEmpty(t *testing.T) {
	idx := NewProductIndex(catalog.DefaultProducts())
	got, err := idx.Search(context.Background(), "spaceship")
	if err != nil {
		t.Fatalf("unmatched query must not error, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unmatched query returned %d results", len(got))
	}
}

func TestProductSearchPluralFallsBackToSingular(t *testing.T) {
	idx := NewProductIndex(catalog.DefaultProducts())
	got, err := idx.Search(context.Background(), "mugs")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("plural query found nothing")
	}
}

func TestOutletSearchFiltersSequentially(t *testing.T) {
	dir := NewOutletDirectory(catalog.DefaultOutlets())
	ctx := context.Background()

	all, err := dir.Search(ctx, OutletFilters{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(all) != dir.Total() {
		t.Fatalf("no-filter search = %d outlets, want %d", len(all), dir.Total())
	}

	byCity, err := dir.Search(ctx, OutletFilters{City: "Petaling Jaya"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(byCity) == 0 || len(byCity) >= len(all) {
		t.Fatalf("city filter = %d outlets, want 0 < n < %d", len(byCity), len(all))
	}

	both, err := dir.Search(ctx, OutletFilters{City: "Petaling Jaya", Service: "drive-thru"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	// The second filter narrows within the first, never widens.
	if len(both) > len(byCity) {
		t.Fatalf("city+service = %d outlets, exceeds city-only %d", len(both), len(byCity))
	}
	for _, o := range both {
		if o.City != "Petaling Jaya" || !o.HasService("drive-thru") {
			t.Fatalf("outlet %q does not satisfy both filters", o.Name)
		}
	}
}

func TestOutletSearchSingleFilterNeverReturnsUniverse(t *testing.T) {
	dir := NewOutletDirectory(catalog.DefaultOutlets())
	got, err := dir.Search(context.Background(), OutletFilters{Service: "drive-thru"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("drive-thru filter found nothing")
	}
	if len(got) >= dir.Total() {
		t.Fatalf("explicit filter returned the full unfiltered set (%d)", len(got))
	}
}

func TestCalculatorEvaluates(t *testing.T) {
	calc := NewCalculator()
	cases := []struct {
		expr string
		want float64
	}{
		{"25 + 15", 40},
		{"105 + 55", 160},
		{"10 - 3", 7},
		{"10-3", 7},
		{"2 * 3 + 4", 10},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"-5 + 10", 5},
		{"7 / 2", 3.5},
		{"1.5 * 2", 3},
	}
	for _, tc := range cases {
		got, err := calc.Evaluate(context.Background(), tc.expr)
		if err != nil {
			t.Fatalf("Evaluate(%q) error = %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestCalculatorDivisionByZero(t *testing.T) {
	calc := NewCalculator()
	_, err := calc.Evaluate(context.Background(), "5 / 0")
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("Evaluate(5/0) error = %v, want ErrDivisionByZero", err)
	}
}

func TestCalculatorBadExpressions(t *testing.T) {
	calc := NewCalculator()
	for _, expr := range []string{"", "abc", "2 +", "(2 + 3", "1..2", "2 ** 3", "5 $ 2"} {
		_, err := calc.Evaluate(context.Background(), expr)
		if !errors.Is(err, ErrBadExpression) {
			t.Fatalf("Evaluate(%q) error = %v, want ErrBadExpression", expr, err)
		}
	}
}
