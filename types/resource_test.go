package types

import "testing"

func TestResourceMetaValue(t *testing.T) {
	r := Resource{
		Family: FamilyStorage,
		ID:     "proj-prod-assets",
		Meta:   map[string]string{"kind": "bucket"},
	}

	if got := r.MetaValue("kind"); got != "bucket" {
		t.Errorf("MetaValue(kind) = %q, want bucket", got)
	}
	if got := r.MetaValue("missing"); got != "" {
		t.Errorf("MetaValue(missing) = %q, want empty", got)
	}

	var empty Resource
	if got := empty.MetaValue("kind"); got != "" {
		t.Errorf("MetaValue on nil meta = %q, want empty", got)
	}
}

func TestResourceString(t *testing.T) {
	r := Resource{
		Family:    FamilyDNS,
		ID:        "proj.example.com",
		AccountID: "111111111111",
		Region:    "us-east-1",
	}

	want := "dns/proj.example.com (111111111111 us-east-1)"
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
