// Package scan discovers destruction candidates per resource family and
// filters them through the project pattern matcher. Scanners never mutate
// anything; empty API results are zero candidates, not errors.
package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yairfalse/purku/awsx"
	"github.com/yairfalse/purku/match"
	"github.com/yairfalse/purku/types"
)

// Scanner lists candidates in one scope (account x region).
type Scanner struct {
	clients  *awsx.Clients
	patterns []string
	tfstate  bool
	logger   zerolog.Logger
}

// New creates a scanner for one credential scope.
func New(clients *awsx.Clients, patterns []string, logger zerolog.Logger) *Scanner {
	return &Scanner{clients: clients, patterns: patterns, logger: logger}
}

// WithTfstateCleanup includes terraform state lock tables in the audit scan.
func (s *Scanner) WithTfstateCleanup(enabled bool) *Scanner {
	s.tfstate = enabled
	return s
}

// Clients exposes the scope's client set, for deletion engines built off the
// same scope.
func (s *Scanner) Clients() *awsx.Clients { return s.clients }

// Scan dispatches to the family's listing.
func (s *Scanner) Scan(ctx context.Context, family types.Family) ([]types.Resource, error) {
	switch family {
	case types.FamilyCDN:
		return s.CDN(ctx)
	case types.FamilyEdgeFirewall:
		return s.EdgeFirewall(ctx)
	case types.FamilyDNS:
		return s.DNS(ctx)
	case types.FamilyStorage:
		return s.Storage(ctx)
	case types.FamilyObservability:
		return s.Observability(ctx)
	case types.FamilyMessaging:
		return s.Messaging(ctx)
	case types.FamilyKeyManagement:
		return s.KeyManagement(ctx)
	case types.FamilyIdentity:
		return s.Identity(ctx)
	case types.FamilyOrganization:
		return s.Organization(ctx)
	case types.FamilyAuditTrail:
		return s.AuditTrail(ctx)
	}
	return nil, fmt.Errorf("no scanner for family %q", family)
}

func (s *Scanner) matches(name string) bool {
	return match.Matches(name, s.patterns)
}

func (s *Scanner) resource(family types.Family, id, arn string) types.Resource {
	return types.Resource{
		Family:    family,
		ID:        id,
		ARN:       arn,
		AccountID: s.clients.AccountID,
		Region:    s.clients.Region,
	}
}

// accountResource is for account-global services (IAM, budgets) whose
// listings repeat identically in every region. Region stays empty so
// per-region scans of the same account collapse in deduplication; the
// deletion engines for these services are region-pinned anyway.
func (s *Scanner) accountResource(family types.Family, id, arn string) types.Resource {
	r := s.resource(family, id, arn)
	r.Region = ""
	return r
}

// lastARNSegment extracts the resource name from an ARN, e.g. the topic name
// from arn:aws:sns:us-east-1:111111111111:proj-alerts.
func lastARNSegment(arn string) string {
	if idx := strings.LastIndexAny(arn, ":/"); idx >= 0 {
		return arn[idx+1:]
	}
	return arn
}
