package scan

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	"github.com/yairfalse/purku/match"
	"github.com/yairfalse/purku/types"
)

// CDN lists project CloudFront distributions. Distributions have no name of
// their own; ownership is decided on the comment and the alias domains.
func (s *Scanner) CDN(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := cloudfront.NewListDistributionsPaginator(s.clients.CloudFront, &cloudfront.ListDistributionsInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list distributions: %w", err)
		}
		if out.DistributionList == nil {
			continue
		}
		for _, dist := range out.DistributionList.Items {
			if !s.distributionMatches(dist) {
				continue
			}
			r := s.resource(types.FamilyCDN, aws.ToString(dist.Id), aws.ToString(dist.ARN))
			r.Meta = map[string]string{
				"domain":  aws.ToString(dist.DomainName),
				"enabled": strconv.FormatBool(aws.ToBool(dist.Enabled)),
			}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func (s *Scanner) distributionMatches(dist cftypes.DistributionSummary) bool {
	if match.Matches(aws.ToString(dist.Comment), s.patterns) {
		return true
	}
	if dist.Aliases != nil && match.Any(dist.Aliases.Items, s.patterns) {
		return true
	}
	return false
}
