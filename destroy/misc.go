package destroy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	waftypes "github.com/aws/aws-sdk-go-v2/service/wafv2/types"

	"github.com/yairfalse/purku/awsx"
	"github.com/yairfalse/purku/types"
)

func (d *Destroyer) destroyObservability(ctx context.Context, r types.Resource) (Outcome, error) {
	switch r.MetaValue("kind") {
	case "log-group":
		_, err := d.clients.Logs.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
			LogGroupName: aws.String(r.ID),
		})
		return outcomeFromErr(err)
	case "alarm", "composite-alarm":
		// DeleteAlarms handles both kinds; composites are scanned first so
		// they are gone before the metric alarms they reference.
		_, err := d.clients.CloudWatch.DeleteAlarms(ctx, &cloudwatch.DeleteAlarmsInput{
			AlarmNames: []string{r.ID},
		})
		return outcomeFromErr(err)
	case "dashboard":
		_, err := d.clients.CloudWatch.DeleteDashboards(ctx, &cloudwatch.DeleteDashboardsInput{
			DashboardNames: []string{r.ID},
		})
		return outcomeFromErr(err)
	}
	return "", fmt.Errorf("unknown observability kind %q for %s", r.MetaValue("kind"), r.ID)
}

func (d *Destroyer) destroyMessaging(ctx context.Context, r types.Resource) (Outcome, error) {
	switch r.MetaValue("kind") {
	case "queue":
		_, err := d.clients.SQS.DeleteQueue(ctx, &sqs.DeleteQueueInput{
			QueueUrl: aws.String(r.MetaValue("queue_url")),
		})
		// The queue-missing code differs between the legacy query protocol
		// and the JSON protocol.
		if awsx.IsCode(err, "QueueDoesNotExist") || awsx.IsCode(err, "AWS.SimpleQueueService.NonExistentQueue") {
			return OutcomeAlreadyGone, nil
		}
		return outcomeFromErr(err)
	default:
		_, err := d.clients.SNS.DeleteTopic(ctx, &sns.DeleteTopicInput{
			TopicArn: aws.String(r.ARN),
		})
		return outcomeFromErr(err)
	}
}

// destroyWebACL drops the logging configuration first, then refetches the
// lock token for the delete. Tokens from scan time may already be stale.
func (d *Destroyer) destroyWebACL(ctx context.Context, r types.Resource) (Outcome, error) {
	_, err := d.clients.WAF.DeleteLoggingConfiguration(ctx, &wafv2.DeleteLoggingConfigurationInput{
		ResourceArn: aws.String(r.ARN),
	})
	if err != nil && !awsx.IsNotFound(err) {
		return "", fmt.Errorf("delete logging configuration for %s: %w", r.ID, err)
	}

	acl, err := d.clients.WAF.GetWebACL(ctx, &wafv2.GetWebACLInput{
		Id:    aws.String(r.MetaValue("id")),
		Name:  aws.String(r.ID),
		Scope: waftypes.ScopeCloudfront,
	})
	if awsx.IsNotFound(err) {
		return OutcomeAlreadyGone, nil
	}
	if err != nil {
		return "", fmt.Errorf("get web ACL %s: %w", r.ID, err)
	}

	_, err = d.clients.WAF.DeleteWebACL(ctx, &wafv2.DeleteWebACLInput{
		Id:        aws.String(r.MetaValue("id")),
		Name:      aws.String(r.ID),
		Scope:     waftypes.ScopeCloudfront,
		LockToken: acl.LockToken,
	})
	return outcomeFromErr(err)
}

func (d *Destroyer) destroyOrganization(ctx context.Context, r types.Resource) (Outcome, error) {
	switch r.MetaValue("kind") {
	case "scp":
		return d.destroySCP(ctx, r)
	default:
		_, err := d.clients.Orgs.DeleteOrganizationalUnit(ctx, &organizations.DeleteOrganizationalUnitInput{
			OrganizationalUnitId: aws.String(r.MetaValue("ou_id")),
		})
		return outcomeFromErr(err)
	}
}

// destroySCP detaches the policy from every target before deleting it.
func (d *Destroyer) destroySCP(ctx context.Context, r types.Resource) (Outcome, error) {
	policyID := r.MetaValue("policy_id")

	paginator := organizations.NewListTargetsForPolicyPaginator(d.clients.Orgs, &organizations.ListTargetsForPolicyInput{
		PolicyId: aws.String(policyID),
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			if awsx.IsNotFound(err) {
				return OutcomeAlreadyGone, nil
			}
			return "", fmt.Errorf("list targets for policy %s: %w", r.ID, err)
		}
		for _, target := range out.Targets {
			_, err := d.clients.Orgs.DetachPolicy(ctx, &organizations.DetachPolicyInput{
				PolicyId: aws.String(policyID),
				TargetId: target.TargetId,
			})
			if err != nil && !awsx.IsNotFound(err) {
				return "", fmt.Errorf("detach policy %s: %w", r.ID, err)
			}
		}
	}

	_, err := d.clients.Orgs.DeletePolicy(ctx, &organizations.DeletePolicyInput{
		PolicyId: aws.String(policyID),
	})
	return outcomeFromErr(err)
}

// CloseAccount closes a member account. Only invoked when the run was
// started with the close-accounts flag, after all phases finished.
func (d *Destroyer) CloseAccount(ctx context.Context, accountID string) error {
	_, err := d.clients.Orgs.CloseAccount(ctx, &organizations.CloseAccountInput{
		AccountId: aws.String(accountID),
	})
	if err != nil && !awsx.IsNotFound(err) {
		return fmt.Errorf("close account %s: %w", accountID, err)
	}
	return nil
}

func (d *Destroyer) destroyAuditTrail(ctx context.Context, r types.Resource) (Outcome, error) {
	switch r.MetaValue("kind") {
	case "trail":
		_, err := d.clients.CloudTrail.DeleteTrail(ctx, &cloudtrail.DeleteTrailInput{
			Name: aws.String(r.ID),
		})
		return outcomeFromErr(err)
	case "lock-table":
		_, err := d.clients.DynamoDB.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(r.ID),
		})
		return outcomeFromErr(err)
	default:
		// Audit buckets go through the same emptying engine as regular
		// storage; the trail writer is already gone by this phase.
		return d.destroyBucket(ctx, r)
	}
}
