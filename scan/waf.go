package scan

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	waftypes "github.com/aws/aws-sdk-go-v2/service/wafv2/types"

	"github.com/yairfalse/purku/types"
)

// EdgeFirewall lists project web ACLs in the CLOUDFRONT scope. ListWebACLs
// has no paginator; the marker loop is manual.
func (s *Scanner) EdgeFirewall(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	var marker *string

	for {
		out, err := s.clients.WAF.ListWebACLs(ctx, &wafv2.ListWebACLsInput{
			Scope:      waftypes.ScopeCloudfront,
			NextMarker: marker,
		})
		if err != nil {
			return nil, fmt.Errorf("list web ACLs: %w", err)
		}

		for _, acl := range out.WebACLs {
			name := aws.ToString(acl.Name)
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyEdgeFirewall, name, aws.ToString(acl.ARN))
			r.Meta = map[string]string{
				"id":         aws.ToString(acl.Id),
				"lock_token": aws.ToString(acl.LockToken),
			}
			resources = append(resources, r)
		}

		if out.NextMarker == nil || len(out.WebACLs) == 0 {
			break
		}
		marker = out.NextMarker
	}
	return resources, nil
}
