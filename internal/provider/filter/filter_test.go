package filter

import (
	"testing"

	"github.com/bgricker/flowreport/internal/provider"
)

func TestFilterFlowsOnly(t *testing.T) {
	flows := []provider.Flow{
		{Path: "flows/login.yaml"},
		{Path: "flows/checkout.yaml", Name: "Checkout with card"},
		{Path: "flows/search.yaml"},
	}

	set, err := NewSet([]string{"login", "/card$/"}, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	filtered := FilterFlows(flows, set)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 flows, got %+v", filtered)
	}
	if filtered[0].Path != "flows/login.yaml" || filtered[1].Path != "flows/checkout.yaml" {
		t.Fatalf("unexpected order or selection: %+v", filtered)
	}
}

func TestFilterFlowsSkip(t *testing.T) {
	flows := []provider.Flow{
		{Path: "flows/login.yaml"},
		{Path: "flows/login_slow.yaml"},
	}

	set, err := NewSet([]string{"LOGIN"}, []string{"slow"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	filtered := FilterFlows(flows, set)
	if len(filtered) != 1 || filtered[0].Path != "flows/login.yaml" {
		t.Fatalf("expected only login.yaml, got %+v", filtered)
	}
}

func TestSetAllowsEmpty(t *testing.T) {
	var set Set
	if !set.Allows("anything") {
		t.Fatalf("empty set should allow everything")
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := Compile([]string{"/(/"}); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, err := NewSet(nil, []string{"/[/"}); err == nil {
		t.Fatalf("expected compile error for skip patterns")
	}
}

func TestCompileTrimsBlank(t *testing.T) {
	patterns, err := Compile([]string{"  ", "/x/", " login "})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected blank pattern dropped, got %d", len(patterns))
	}
	if patterns[0].String() != "/x/" || patterns[1].String() != "login" {
		t.Fatalf("unexpected raw patterns: %v", patterns)
	}
}
