package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"

	"github.com/yairfalse/purku/types"
)

// DNS lists project hosted zones and health checks.
func (s *Scanner) DNS(ctx context.Context) ([]types.Resource, error) {
	resources, err := s.listHostedZones(ctx)
	if err != nil {
		return nil, err
	}

	checks, err := s.listHealthChecks(ctx)
	if err != nil {
		return nil, err
	}
	return append(resources, checks...), nil
}

func (s *Scanner) listHostedZones(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := route53.NewListHostedZonesPaginator(s.clients.Route53, &route53.ListHostedZonesInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list hosted zones: %w", err)
		}
		for _, zone := range out.HostedZones {
			name := strings.TrimSuffix(aws.ToString(zone.Name), ".")
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyDNS, name, "")
			r.Meta = map[string]string{
				"kind":    "hosted-zone",
				"zone_id": zoneID(aws.ToString(zone.Id)),
			}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func (s *Scanner) listHealthChecks(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := route53.NewListHealthChecksPaginator(s.clients.Route53, &route53.ListHealthChecksInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list health checks: %w", err)
		}
		for _, check := range out.HealthChecks {
			fqdn := ""
			if check.HealthCheckConfig != nil {
				fqdn = aws.ToString(check.HealthCheckConfig.FullyQualifiedDomainName)
			}
			if !s.matches(fqdn) {
				continue
			}
			r := s.resource(types.FamilyDNS, fqdn, "")
			r.Meta = map[string]string{
				"kind":            "health-check",
				"health_check_id": aws.ToString(check.Id),
			}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

// zoneID strips the "/hostedzone/" prefix Route53 puts on zone IDs.
func zoneID(id string) string {
	return strings.TrimPrefix(id, "/hostedzone/")
}
