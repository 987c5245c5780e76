package resolve

import (
	"errors"
	"strings"
	"testing"
)

var layouts = []string{"Orders", "Order Lines", "Invoices", "Customers", "Customer Notes"}

func TestFuzzyMatch_ExactHit(t *testing.T) {
	got, err := FuzzyMatch("orders", layouts)
	if err != nil || got != "Orders" {
		t.Errorf("FuzzyMatch = %q, %v; want Orders", got, err)
	}
}

func TestFuzzyMatch_PartialHit(t *testing.T) {
	got, err := FuzzyMatch("invc", layouts)
	if err != nil || got != "Invoices" {
		t.Errorf("FuzzyMatch = %q, %v; want Invoices", got, err)
	}
}

func TestFuzzyMatch_NoMatch(t *testing.T) {
	_, err := FuzzyMatch("zzz", layouts)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Query != "zzz" {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestFuzzyMatch_Ambiguous(t *testing.T) {
	_, err := FuzzyMatch("Layout", []string{"Layout A", "Layout B"})
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
	if len(amb.Matches) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(amb.Matches))
	}
	if !strings.Contains(amb.Error(), "Layout A") {
		t.Errorf("error should list candidates: %s", amb.Error())
	}
}

func TestFuzzyMatch_EmptyInputs(t *testing.T) {
	if _, err := FuzzyMatch("  ", layouts); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := FuzzyMatch("x", nil); !errors.Is(err, ErrEmptyItems) {
		t.Errorf("expected ErrEmptyItems, got %v", err)
	}
}

func TestFuzzyMatchAll_ReturnsRanked(t *testing.T) {
	matches := FuzzyMatchAll("cust", layouts, 1)
	if len(matches) != 1 || !strings.HasPrefix(matches[0].Name, "Customer") {
		t.Errorf("unexpected matches %v", matches)
	}
	if FuzzyMatchAll("cust", layouts, 0) != nil {
		t.Error("limit 0 should return nil")
	}
}
