package match

import (
	"testing"

	"github.com/yairfalse/purku/types"
)

func TestMatches(t *testing.T) {
	patterns := []string{"proj-", "projweb"}

	tests := []struct {
		name     string
		resource string
		want     bool
	}{
		{"exact prefix", "proj-dev-assets", true},
		{"substring in middle", "cdn-projweb-logs", true},
		{"unrelated resource", "shared-billing-reports", false},
		{"empty name", "", false},
		{"none sentinel", "None", false},
		{"case sensitive", "PROJ-dev-assets", false},
		{"pattern at end", "assets-proj-", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.resource, patterns); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.resource, got, tt.want)
			}
		})
	}
}

func TestMatchesEmptyPatterns(t *testing.T) {
	if Matches("proj-dev-assets", nil) {
		t.Error("no patterns should never match")
	}
	if Matches("proj-dev-assets", []string{""}) {
		t.Error("empty pattern must be ignored, not match everything")
	}
}

func TestAny(t *testing.T) {
	patterns := []string{"proj-"}
	if !Any([]string{"other", "proj-dev"}, patterns) {
		t.Error("expected match on second name")
	}
	if Any([]string{"other", "shared"}, patterns) {
		t.Error("expected no match")
	}
	if Any(nil, patterns) {
		t.Error("no names should not match")
	}
}

func TestFilter(t *testing.T) {
	resources := []types.Resource{
		{Family: types.FamilyStorage, ID: "proj-dev-assets"},
		{Family: types.FamilyStorage, ID: "shared-data"},
		{Family: types.FamilyIdentity, ID: "deploy", ARN: "arn:aws:iam::111111111111:role/proj-deploy"},
	}

	kept := Filter(resources, []string{"proj-"})
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept resources, got %d", len(kept))
	}
	if kept[0].ID != "proj-dev-assets" || kept[1].ID != "deploy" {
		t.Errorf("unexpected filter result: %+v", kept)
	}
}

func TestFilterEmpty(t *testing.T) {
	if got := Filter(nil, []string{"proj-"}); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
