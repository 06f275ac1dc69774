package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yairfalse/purku/awsx"
	"github.com/yairfalse/purku/types"
)

// auditBucketMarkers flag buckets that belong to the audit-trail family.
// Those are deferred to the terminal phase: their writers (CloudTrail, access
// log delivery) are still alive during the storage phase and are the most
// common cause of "bucket not empty" races.
var auditBucketMarkers = []string{"cloudtrail", "audit", "access-logs"}

// Storage lists project buckets, excluding audit-trail buckets. ListBuckets
// is account-global; each candidate carries its real region so the deletion
// engine can talk to the right regional endpoint.
func (s *Scanner) Storage(ctx context.Context) ([]types.Resource, error) {
	return s.listBuckets(ctx, false)
}

// AuditStorage lists only the audit-trail buckets, for the terminal phase.
func (s *Scanner) AuditStorage(ctx context.Context) ([]types.Resource, error) {
	return s.listBuckets(ctx, true)
}

func (s *Scanner) listBuckets(ctx context.Context, auditOnly bool) ([]types.Resource, error) {
	out, err := s.clients.S3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	var resources []types.Resource
	for _, bucket := range out.Buckets {
		name := aws.ToString(bucket.Name)
		if !s.matches(name) {
			continue
		}
		if isAuditBucket(name) != auditOnly {
			continue
		}

		family := types.FamilyStorage
		if auditOnly {
			family = types.FamilyAuditTrail
		}
		r := s.resource(family, name, "")
		r.Region = s.bucketRegion(ctx, name)
		r.Meta = map[string]string{"kind": "bucket"}
		resources = append(resources, r)
	}
	return resources, nil
}

// bucketRegion resolves where a bucket actually lives. A lookup failure
// falls back to the scanner's region; the deletion engine will surface any
// real problem on its own calls.
func (s *Scanner) bucketRegion(ctx context.Context, name string) string {
	out, err := s.clients.S3.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		return s.clients.Region
	}
	return regionFromLocation(string(out.LocationConstraint))
}

// regionFromLocation maps a GetBucketLocation constraint to a region name.
// The us-east-1 legacy cases come back empty or as "US".
func regionFromLocation(constraint string) string {
	switch constraint {
	case "", "US":
		return awsx.GlobalRegion
	case "EU":
		return "eu-west-1"
	}
	return constraint
}

func isAuditBucket(name string) bool {
	for _, marker := range auditBucketMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
