package scan

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/rs/zerolog"

	"github.com/yairfalse/purku/awsx"
)

func testScanner(patterns ...string) *Scanner {
	return New(&awsx.Clients{AccountID: "111111111111", Region: "us-east-1"}, patterns, zerolog.Nop())
}

func TestLastARNSegment(t *testing.T) {
	tests := []struct {
		name string
		arn  string
		want string
	}{
		{"sns topic arn", "arn:aws:sns:us-east-1:111111111111:proj-alerts", "proj-alerts"},
		{"sqs queue url", "https://sqs.us-east-1.amazonaws.com/111111111111/proj-events", "proj-events"},
		{"oidc provider arn", "arn:aws:iam::111111111111:oidc-provider/token.actions.githubusercontent.com", "token.actions.githubusercontent.com"},
		{"bare name", "proj-alerts", "proj-alerts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lastARNSegment(tt.arn); got != tt.want {
				t.Errorf("lastARNSegment(%q) = %q, want %q", tt.arn, got, tt.want)
			}
		})
	}
}

func TestIsAuditBucket(t *testing.T) {
	tests := []struct {
		bucket string
		want   bool
	}{
		{"proj-cloudtrail-logs-mgmt", true},
		{"proj-audit-archive", true},
		{"proj-access-logs", true},
		{"proj-dev-assets", false},
		{"proj-tfstate", false},
	}

	for _, tt := range tests {
		t.Run(tt.bucket, func(t *testing.T) {
			if got := isAuditBucket(tt.bucket); got != tt.want {
				t.Errorf("isAuditBucket(%q) = %v, want %v", tt.bucket, got, tt.want)
			}
		})
	}
}

func TestIsLockTable(t *testing.T) {
	if !isLockTable("proj-tfstate-lock") {
		t.Error("expected tfstate table to be a lock table")
	}
	if isLockTable("proj-sessions") {
		t.Error("application table is not a lock table")
	}
}

func TestRegionFromLocation(t *testing.T) {
	tests := []struct {
		constraint string
		want       string
	}{
		{"", "us-east-1"},
		{"US", "us-east-1"},
		{"EU", "eu-west-1"},
		{"eu-north-1", "eu-north-1"},
	}

	for _, tt := range tests {
		if got := regionFromLocation(tt.constraint); got != tt.want {
			t.Errorf("regionFromLocation(%q) = %q, want %q", tt.constraint, got, tt.want)
		}
	}
}

func TestZoneID(t *testing.T) {
	if got := zoneID("/hostedzone/Z0123456789"); got != "Z0123456789" {
		t.Errorf("zoneID() = %q", got)
	}
	if got := zoneID("Z0123456789"); got != "Z0123456789" {
		t.Errorf("zoneID() without prefix = %q", got)
	}
}

func TestDistributionMatches(t *testing.T) {
	s := testScanner("proj-")

	byComment := cftypes.DistributionSummary{
		Comment: aws.String("proj-web distribution"),
		Enabled: aws.Bool(true),
	}
	if !s.distributionMatches(byComment) {
		t.Error("expected match on comment")
	}

	byAlias := cftypes.DistributionSummary{
		Comment: aws.String("static site"),
		Aliases: &cftypes.Aliases{Items: []string{"www.proj-site.example"}},
	}
	if !s.distributionMatches(byAlias) {
		t.Error("expected match on alias")
	}

	unrelated := cftypes.DistributionSummary{Comment: aws.String("corporate site")}
	if s.distributionMatches(unrelated) {
		t.Error("unrelated distribution must not match")
	}
}

func TestScannerResourceScope(t *testing.T) {
	s := testScanner("proj-")

	r := s.resource("storage", "proj-dev-assets", "")
	if r.AccountID != "111111111111" || r.Region != "us-east-1" {
		t.Errorf("resource scope not propagated: %+v", r)
	}

	// Account-global services report without a region so repeated per-region
	// listings deduplicate to one resource.
	global := s.accountResource("identity", "proj-deployer", "")
	if global.AccountID != "111111111111" || global.Region != "" {
		t.Errorf("account-global resource scope wrong: %+v", global)
	}
}
