package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/yairfalse/purku/types"
)

// tfstateMarkers flag terraform backend lock tables.
var tfstateMarkers = []string{"tfstate", "terraform-lock", "tf-lock"}

// AuditTrail lists the terminal-phase candidates: CloudTrail trails, their
// log buckets, and (when enabled) terraform state lock tables. Trails come
// first in the result so the writer dies before its bucket is emptied.
func (s *Scanner) AuditTrail(ctx context.Context) ([]types.Resource, error) {
	resources, err := s.listTrails(ctx)
	if err != nil {
		return nil, err
	}

	buckets, err := s.AuditStorage(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, buckets...)

	if s.tfstate {
		tables, err := s.listLockTables(ctx)
		if err != nil {
			return nil, err
		}
		resources = append(resources, tables...)
	}
	return resources, nil
}

func (s *Scanner) listTrails(ctx context.Context) ([]types.Resource, error) {
	out, err := s.clients.CloudTrail.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{})
	if err != nil {
		return nil, fmt.Errorf("describe trails: %w", err)
	}

	var resources []types.Resource
	for _, trail := range out.TrailList {
		name := aws.ToString(trail.Name)
		if !s.matches(name) {
			continue
		}
		r := s.resource(types.FamilyAuditTrail, name, aws.ToString(trail.TrailARN))
		r.Meta = map[string]string{
			"kind":        "trail",
			"home_region": aws.ToString(trail.HomeRegion),
		}
		resources = append(resources, r)
	}
	return resources, nil
}

func (s *Scanner) listLockTables(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := dynamodb.NewListTablesPaginator(s.clients.DynamoDB, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		for _, name := range out.TableNames {
			if !s.matches(name) || !isLockTable(name) {
				continue
			}
			r := s.resource(types.FamilyAuditTrail, name, "")
			r.Meta = map[string]string{"kind": "lock-table"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func isLockTable(name string) bool {
	for _, marker := range tfstateMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
