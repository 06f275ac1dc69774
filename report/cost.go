package report

import "github.com/yairfalse/purku/types"

// monthlyUnitCost is a rough per-resource monthly USD figure per family.
// Deliberately coarse: the summary line needs an order of magnitude, not a
// bill. Storage varies wildly with object count, so it gets a mid-range
// figure.
var monthlyUnitCost = map[types.Family]float64{
	types.FamilyCDN:           45.0,
	types.FamilyEdgeFirewall:  10.0,
	types.FamilyDNS:           0.50,
	types.FamilyStorage:       23.0,
	types.FamilyObservability: 3.0,
	types.FamilyMessaging:     1.0,
	types.FamilyKeyManagement: 1.0,
	types.FamilyIdentity:      0.0,
	types.FamilyOrganization:  0.0,
	types.FamilyAuditTrail:    8.0,
}

// EstimateMonthlySavings sums unit costs over destroyed (or planned)
// resources.
func EstimateMonthlySavings(resources []types.Resource) float64 {
	var total float64
	for _, r := range resources {
		total += monthlyUnitCost[r.Family]
	}
	return total
}

// SavingsByFamily breaks the estimate down per family for the plan table.
func SavingsByFamily(resources []types.Resource) map[types.Family]float64 {
	byFamily := make(map[types.Family]float64)
	for _, r := range resources {
		byFamily[r.Family] += monthlyUnitCost[r.Family]
	}
	return byFamily
}
