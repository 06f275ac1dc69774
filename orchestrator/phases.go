package orchestrator

import "github.com/yairfalse/purku/types"

// Phase is one step of the fixed teardown order. Order exists so reports and
// logs show the position; the slice order is what actually drives execution.
type Phase struct {
	Order  int
	Family types.Family
	Name   string

	// Global phases talk to a single control plane; they scan once per
	// account instead of once per account-region.
	Global bool

	// ManagementOnly phases only make sense from the management account
	// (organization structure, account closure).
	ManagementOnly bool
}

// DefaultPhases is the teardown order. Edge first so nothing routes traffic
// into resources being deleted; audit trail last so every other deletion is
// still recorded.
var DefaultPhases = []Phase{
	{Order: 1, Family: types.FamilyCDN, Name: "cdn", Global: true},
	{Order: 2, Family: types.FamilyEdgeFirewall, Name: "edge-firewall", Global: true},
	{Order: 3, Family: types.FamilyDNS, Name: "dns", Global: true},
	{Order: 4, Family: types.FamilyStorage, Name: "storage", Global: true},
	{Order: 5, Family: types.FamilyObservability, Name: "observability"},
	{Order: 6, Family: types.FamilyMessaging, Name: "messaging"},
	{Order: 7, Family: types.FamilyKeyManagement, Name: "key-management"},
	// Identity is mostly global (IAM) but includes regional SSM parameters,
	// so it scans per region; the IAM duplicates collapse in deduplication.
	{Order: 8, Family: types.FamilyIdentity, Name: "identity"},
	{Order: 9, Family: types.FamilyOrganization, Name: "organization", Global: true, ManagementOnly: true},
	{Order: 10, Family: types.FamilyAuditTrail, Name: "audit-trail"},
}
