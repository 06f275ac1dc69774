package types

import "fmt"

// Family identifies one resource family handled by the destruction sequence.
type Family string

const (
	FamilyCDN           Family = "cdn"
	FamilyEdgeFirewall  Family = "edge-firewall"
	FamilyDNS           Family = "dns"
	FamilyStorage       Family = "storage"
	FamilyObservability Family = "observability"
	FamilyMessaging     Family = "messaging"
	FamilyKeyManagement Family = "key-management"
	FamilyIdentity      Family = "identity"
	FamilyOrganization  Family = "organization"
	FamilyAuditTrail    Family = "audit-trail"
)

// Resource is a single destruction candidate discovered by a scanner.
// Candidates live for one phase-account iteration and are not persisted.
type Resource struct {
	Family    Family            `json:"family"`
	ID        string            `json:"id"`
	ARN       string            `json:"arn,omitempty"`
	AccountID string            `json:"account_id"`
	Region    string            `json:"region"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// MetaValue returns a metadata field or "" when absent.
func (r Resource) MetaValue(key string) string {
	if r.Meta == nil {
		return ""
	}
	return r.Meta[key]
}

func (r Resource) String() string {
	return fmt.Sprintf("%s/%s (%s %s)", r.Family, r.ID, r.AccountID, r.Region)
}

// Account is one AWS account in the destruction scope. Resolved once at
// startup from configuration and immutable for the run.
type Account struct {
	ID      string `json:"id"`
	Env     string `json:"env"`
	RoleARN string `json:"role_arn,omitempty"`
	Current bool   `json:"current"`
}
