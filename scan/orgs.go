package scan

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"

	"github.com/yairfalse/purku/awsx"
	"github.com/yairfalse/purku/types"
)

// Organization lists project OUs and service control policies. Only the
// management account can see these; an account that is not part of an
// organization yields zero candidates, not an error.
func (s *Scanner) Organization(ctx context.Context) ([]types.Resource, error) {
	resources, err := s.listOrganizationalUnits(ctx)
	if err != nil {
		if notInOrganization(err) {
			return nil, nil
		}
		return nil, err
	}

	policies, err := s.listSCPs(ctx)
	if err != nil {
		if notInOrganization(err) {
			return resources, nil
		}
		return nil, err
	}
	return append(resources, policies...), nil
}

func (s *Scanner) listOrganizationalUnits(ctx context.Context) ([]types.Resource, error) {
	roots, err := s.clients.Orgs.ListRoots(ctx, &organizations.ListRootsInput{})
	if err != nil {
		return nil, fmt.Errorf("list roots: %w", err)
	}

	var resources []types.Resource
	for _, root := range roots.Roots {
		input := &organizations.ListOrganizationalUnitsForParentInput{ParentId: root.Id}
		paginator := organizations.NewListOrganizationalUnitsForParentPaginator(s.clients.Orgs, input)
		for paginator.HasMorePages() {
			out, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("list organizational units: %w", err)
			}
			for _, ou := range out.OrganizationalUnits {
				name := aws.ToString(ou.Name)
				if !s.matches(name) {
					continue
				}
				r := s.resource(types.FamilyOrganization, name, aws.ToString(ou.Arn))
				r.Meta = map[string]string{"kind": "ou", "ou_id": aws.ToString(ou.Id)}
				resources = append(resources, r)
			}
		}
	}
	return resources, nil
}

func (s *Scanner) listSCPs(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	input := &organizations.ListPoliciesInput{Filter: orgtypes.PolicyTypeServiceControlPolicy}
	paginator := organizations.NewListPoliciesPaginator(s.clients.Orgs, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list service control policies: %w", err)
		}
		for _, policy := range out.Policies {
			name := aws.ToString(policy.Name)
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyOrganization, name, aws.ToString(policy.Arn))
			r.Meta = map[string]string{"kind": "scp", "policy_id": aws.ToString(policy.Id)}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func notInOrganization(err error) bool {
	switch awsx.ErrorCode(err) {
	case "AWSOrganizationsNotInUseException", "AccessDeniedException":
		return true
	}
	return false
}
