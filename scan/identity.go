package scan

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/yairfalse/purku/types"
)

// Identity lists project IAM roles, customer-managed policies, users,
// groups, OIDC providers, SSM parameters and cost budgets. These are all
// account-global and share one cleanup phase.
func (s *Scanner) Identity(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	collectors := []func(context.Context) ([]types.Resource, error){
		s.listRoles,
		s.listPolicies,
		s.listUsers,
		s.listGroups,
		s.listOIDCProviders,
		s.listParameters,
		s.listBudgets,
	}
	for _, collect := range collectors {
		found, err := collect(ctx)
		if err != nil {
			return nil, err
		}
		resources = append(resources, found...)
	}
	return resources, nil
}

func (s *Scanner) listRoles(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := iam.NewListRolesPaginator(s.clients.IAM, &iam.ListRolesInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list roles: %w", err)
		}
		for _, role := range out.Roles {
			name := aws.ToString(role.RoleName)
			if !s.matches(name) {
				continue
			}
			r := s.accountResource(types.FamilyIdentity, name, aws.ToString(role.Arn))
			r.Meta = map[string]string{"kind": "role"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func (s *Scanner) listPolicies(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	input := &iam.ListPoliciesInput{Scope: iamtypes.PolicyScopeTypeLocal}
	paginator := iam.NewListPoliciesPaginator(s.clients.IAM, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list policies: %w", err)
		}
		for _, policy := range out.Policies {
			name := aws.ToString(policy.PolicyName)
			if !s.matches(name) {
				continue
			}
			r := s.accountResource(types.FamilyIdentity, name, aws.ToString(policy.Arn))
			r.Meta = map[string]string{"kind": "policy"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func (s *Scanner) listUsers(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := iam.NewListUsersPaginator(s.clients.IAM, &iam.ListUsersInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for _, user := range out.Users {
			name := aws.ToString(user.UserName)
			if !s.matches(name) {
				continue
			}
			r := s.accountResource(types.FamilyIdentity, name, aws.ToString(user.Arn))
			r.Meta = map[string]string{"kind": "user"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func (s *Scanner) listGroups(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := iam.NewListGroupsPaginator(s.clients.IAM, &iam.ListGroupsInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		for _, group := range out.Groups {
			name := aws.ToString(group.GroupName)
			if !s.matches(name) {
				continue
			}
			r := s.accountResource(types.FamilyIdentity, name, aws.ToString(group.Arn))
			r.Meta = map[string]string{"kind": "group"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

// listOIDCProviders matches on the provider ARN, which carries the provider
// host (e.g. the GitHub Actions token issuer a pipeline registered).
func (s *Scanner) listOIDCProviders(ctx context.Context) ([]types.Resource, error) {
	out, err := s.clients.IAM.ListOpenIDConnectProviders(ctx, &iam.ListOpenIDConnectProvidersInput{})
	if err != nil {
		return nil, fmt.Errorf("list OIDC providers: %w", err)
	}

	var resources []types.Resource
	for _, provider := range out.OpenIDConnectProviderList {
		arn := aws.ToString(provider.Arn)
		if !s.matches(arn) {
			continue
		}
		r := s.accountResource(types.FamilyIdentity, lastARNSegment(arn), arn)
		r.Meta = map[string]string{"kind": "oidc-provider"}
		resources = append(resources, r)
	}
	return resources, nil
}

func (s *Scanner) listParameters(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ssm.NewDescribeParametersPaginator(s.clients.SSM, &ssm.DescribeParametersInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe parameters: %w", err)
		}
		for _, param := range out.Parameters {
			name := aws.ToString(param.Name)
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyIdentity, name, "")
			r.Meta = map[string]string{"kind": "ssm-parameter"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func (s *Scanner) listBudgets(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	input := &budgets.DescribeBudgetsInput{AccountId: aws.String(s.clients.AccountID)}
	paginator := budgets.NewDescribeBudgetsPaginator(s.clients.Budgets, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe budgets: %w", err)
		}
		for _, budget := range out.Budgets {
			name := aws.ToString(budget.BudgetName)
			if !s.matches(name) {
				continue
			}
			r := s.accountResource(types.FamilyIdentity, name, "")
			r.Meta = map[string]string{"kind": "budget"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}
