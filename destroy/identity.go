package destroy

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/yairfalse/purku/awsx"
	"github.com/yairfalse/purku/types"
)

func (d *Destroyer) destroyIdentity(ctx context.Context, r types.Resource) (Outcome, error) {
	switch r.MetaValue("kind") {
	case "role":
		return outcomeFromErr(d.deleteRole(ctx, r.ID))
	case "policy":
		return outcomeFromErr(d.deletePolicy(ctx, r.ARN))
	case "user":
		return outcomeFromErr(d.deleteUser(ctx, r.ID))
	case "group":
		return outcomeFromErr(d.deleteGroup(ctx, r.ID))
	case "oidc-provider":
		_, err := d.clients.IAM.DeleteOpenIDConnectProvider(ctx, &iam.DeleteOpenIDConnectProviderInput{
			OpenIDConnectProviderArn: aws.String(r.ARN),
		})
		return outcomeFromErr(err)
	case "ssm-parameter":
		_, err := d.clients.SSM.DeleteParameter(ctx, &ssm.DeleteParameterInput{
			Name: aws.String(r.ID),
		})
		return outcomeFromErr(err)
	case "budget":
		_, err := d.clients.Budgets.DeleteBudget(ctx, &budgets.DeleteBudgetInput{
			AccountId:  aws.String(r.AccountID),
			BudgetName: aws.String(r.ID),
		})
		return outcomeFromErr(err)
	}
	return "", fmt.Errorf("unknown identity kind %q for %s", r.MetaValue("kind"), r.ID)
}

// deleteRole detaches managed policies, deletes inline policies, and pulls
// the role out of its instance profiles before the delete call. IAM refuses
// to delete a role with any of those still attached.
func (d *Destroyer) deleteRole(ctx context.Context, name string) error {
	attached, err := d.clients.IAM.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("list attached policies for role %s: %w", name, err)
	}
	for _, policy := range attached.AttachedPolicies {
		_, err := d.clients.IAM.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(name),
			PolicyArn: policy.PolicyArn,
		})
		if err != nil && !awsx.IsNotFound(err) {
			return fmt.Errorf("detach policy from role %s: %w", name, err)
		}
	}

	inline, err := d.clients.IAM.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("list inline policies for role %s: %w", name, err)
	}
	for _, policyName := range inline.PolicyNames {
		_, err := d.clients.IAM.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   aws.String(name),
			PolicyName: aws.String(policyName),
		})
		if err != nil && !awsx.IsNotFound(err) {
			return fmt.Errorf("delete inline policy %s from role %s: %w", policyName, name, err)
		}
	}

	profiles, err := d.clients.IAM.ListInstanceProfilesForRole(ctx, &iam.ListInstanceProfilesForRoleInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("list instance profiles for role %s: %w", name, err)
	}
	for _, profile := range profiles.InstanceProfiles {
		_, err := d.clients.IAM.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
			InstanceProfileName: profile.InstanceProfileName,
			RoleName:            aws.String(name),
		})
		if err != nil && !awsx.IsNotFound(err) {
			return fmt.Errorf("remove role %s from instance profile: %w", name, err)
		}
	}

	_, err = d.clients.IAM.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)})
	return err
}

// deletePolicy detaches the policy everywhere, deletes non-default
// versions, then deletes the policy itself.
func (d *Destroyer) deletePolicy(ctx context.Context, arn string) error {
	entities, err := d.clients.IAM.ListEntitiesForPolicy(ctx, &iam.ListEntitiesForPolicyInput{
		PolicyArn: aws.String(arn),
	})
	if err != nil {
		return fmt.Errorf("list entities for policy %s: %w", arn, err)
	}
	for _, role := range entities.PolicyRoles {
		_, _ = d.clients.IAM.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName: role.RoleName, PolicyArn: aws.String(arn),
		})
	}
	for _, user := range entities.PolicyUsers {
		_, _ = d.clients.IAM.DetachUserPolicy(ctx, &iam.DetachUserPolicyInput{
			UserName: user.UserName, PolicyArn: aws.String(arn),
		})
	}
	for _, group := range entities.PolicyGroups {
		_, _ = d.clients.IAM.DetachGroupPolicy(ctx, &iam.DetachGroupPolicyInput{
			GroupName: group.GroupName, PolicyArn: aws.String(arn),
		})
	}

	versions, err := d.clients.IAM.ListPolicyVersions(ctx, &iam.ListPolicyVersionsInput{
		PolicyArn: aws.String(arn),
	})
	if err != nil {
		return fmt.Errorf("list versions for policy %s: %w", arn, err)
	}
	for _, version := range versions.Versions {
		if version.IsDefaultVersion {
			continue
		}
		_, err := d.clients.IAM.DeletePolicyVersion(ctx, &iam.DeletePolicyVersionInput{
			PolicyArn: aws.String(arn),
			VersionId: version.VersionId,
		})
		if err != nil && !awsx.IsNotFound(err) {
			return fmt.Errorf("delete version of policy %s: %w", arn, err)
		}
	}

	_, err = d.clients.IAM.DeletePolicy(ctx, &iam.DeletePolicyInput{PolicyArn: aws.String(arn)})
	return err
}

// IAMUserAPI is the slice of the IAM client the user teardown needs.
type IAMUserAPI interface {
	ListAttachedUserPolicies(ctx context.Context, params *iam.ListAttachedUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error)
	DetachUserPolicy(ctx context.Context, params *iam.DetachUserPolicyInput, optFns ...func(*iam.Options)) (*iam.DetachUserPolicyOutput, error)
	ListUserPolicies(ctx context.Context, params *iam.ListUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListUserPoliciesOutput, error)
	DeleteUserPolicy(ctx context.Context, params *iam.DeleteUserPolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteUserPolicyOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error)
	DeleteLoginProfile(ctx context.Context, params *iam.DeleteLoginProfileInput, optFns ...func(*iam.Options)) (*iam.DeleteLoginProfileOutput, error)
	ListMFADevices(ctx context.Context, params *iam.ListMFADevicesInput, optFns ...func(*iam.Options)) (*iam.ListMFADevicesOutput, error)
	DeactivateMFADevice(ctx context.Context, params *iam.DeactivateMFADeviceInput, optFns ...func(*iam.Options)) (*iam.DeactivateMFADeviceOutput, error)
	DeleteVirtualMFADevice(ctx context.Context, params *iam.DeleteVirtualMFADeviceInput, optFns ...func(*iam.Options)) (*iam.DeleteVirtualMFADeviceOutput, error)
	DeleteUser(ctx context.Context, params *iam.DeleteUserInput, optFns ...func(*iam.Options)) (*iam.DeleteUserOutput, error)
}

var _ IAMUserAPI = (*iam.Client)(nil)

func (d *Destroyer) deleteUser(ctx context.Context, name string) error {
	return purgeUser(ctx, d.clients.IAM, name)
}

// purgeUser strips everything IAM refuses to delete a user with: attached
// and inline policies, access keys, the console login profile, and MFA
// devices. Only then does DeleteUser go through.
func purgeUser(ctx context.Context, api IAMUserAPI, name string) error {
	attached, err := api.ListAttachedUserPolicies(ctx, &iam.ListAttachedUserPoliciesInput{
		UserName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("list attached policies for user %s: %w", name, err)
	}
	for _, policy := range attached.AttachedPolicies {
		_, _ = api.DetachUserPolicy(ctx, &iam.DetachUserPolicyInput{
			UserName: aws.String(name), PolicyArn: policy.PolicyArn,
		})
	}

	inline, err := api.ListUserPolicies(ctx, &iam.ListUserPoliciesInput{
		UserName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("list inline policies for user %s: %w", name, err)
	}
	for _, policyName := range inline.PolicyNames {
		_, _ = api.DeleteUserPolicy(ctx, &iam.DeleteUserPolicyInput{
			UserName: aws.String(name), PolicyName: aws.String(policyName),
		})
	}

	keys, err := api.ListAccessKeys(ctx, &iam.ListAccessKeysInput{
		UserName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("list access keys for user %s: %w", name, err)
	}
	for _, key := range keys.AccessKeyMetadata {
		_, err := api.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
			UserName: aws.String(name), AccessKeyId: key.AccessKeyId,
		})
		if err != nil && !awsx.IsNotFound(err) {
			return fmt.Errorf("delete access key for user %s: %w", name, err)
		}
	}

	// Console-enabled users also hold a login profile and MFA devices; IAM
	// returns DeleteConflict until both are gone.
	_, err = api.DeleteLoginProfile(ctx, &iam.DeleteLoginProfileInput{
		UserName: aws.String(name),
	})
	if err != nil && !awsx.IsNotFound(err) {
		return fmt.Errorf("delete login profile for user %s: %w", name, err)
	}

	mfa, err := api.ListMFADevices(ctx, &iam.ListMFADevicesInput{
		UserName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("list MFA devices for user %s: %w", name, err)
	}
	for _, device := range mfa.MFADevices {
		_, err := api.DeactivateMFADevice(ctx, &iam.DeactivateMFADeviceInput{
			UserName: aws.String(name), SerialNumber: device.SerialNumber,
		})
		if err != nil && !awsx.IsNotFound(err) {
			return fmt.Errorf("deactivate MFA device for user %s: %w", name, err)
		}
		// Virtual devices carry an ARN serial and have to be deleted too;
		// hardware serials are left alone.
		if strings.Contains(aws.ToString(device.SerialNumber), ":mfa/") {
			_, err := api.DeleteVirtualMFADevice(ctx, &iam.DeleteVirtualMFADeviceInput{
				SerialNumber: device.SerialNumber,
			})
			if err != nil && !awsx.IsNotFound(err) {
				return fmt.Errorf("delete virtual MFA device for user %s: %w", name, err)
			}
		}
	}

	_, err = api.DeleteUser(ctx, &iam.DeleteUserInput{UserName: aws.String(name)})
	return err
}

func (d *Destroyer) deleteGroup(ctx context.Context, name string) error {
	group, err := d.clients.IAM.GetGroup(ctx, &iam.GetGroupInput{GroupName: aws.String(name)})
	if err != nil {
		return fmt.Errorf("get group %s: %w", name, err)
	}
	for _, user := range group.Users {
		_, _ = d.clients.IAM.RemoveUserFromGroup(ctx, &iam.RemoveUserFromGroupInput{
			GroupName: aws.String(name), UserName: user.UserName,
		})
	}

	attached, err := d.clients.IAM.ListAttachedGroupPolicies(ctx, &iam.ListAttachedGroupPoliciesInput{
		GroupName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("list attached policies for group %s: %w", name, err)
	}
	for _, policy := range attached.AttachedPolicies {
		_, _ = d.clients.IAM.DetachGroupPolicy(ctx, &iam.DetachGroupPolicyInput{
			GroupName: aws.String(name), PolicyArn: policy.PolicyArn,
		})
	}

	_, err = d.clients.IAM.DeleteGroup(ctx, &iam.DeleteGroupInput{GroupName: aws.String(name)})
	return err
}
