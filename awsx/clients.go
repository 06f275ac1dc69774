// Package awsx bundles the AWS service clients used across scanners and
// deletion engines. Clients are built from an explicit aws.Config so each
// phase-account-region unit carries its own credential scope.
package awsx

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
)

// GlobalRegion is where the global control planes live. CloudFront and
// CLOUDFRONT-scoped WAF only answer there.
const GlobalRegion = "us-east-1"

// Clients holds per-service AWS clients for one credential scope.
type Clients struct {
	S3         *s3.Client
	CloudFront *cloudfront.Client
	WAF        *wafv2.Client
	Route53    *route53.Client
	Logs       *cloudwatchlogs.Client
	CloudWatch *cloudwatch.Client
	SNS        *sns.Client
	SQS        *sqs.Client
	KMS        *kms.Client
	IAM        *iam.Client
	SSM        *ssm.Client
	Budgets    *budgets.Client
	Orgs       *organizations.Client
	CloudTrail *cloudtrail.Client
	DynamoDB   *dynamodb.Client

	AccountID string
	Region    string
}

// NewClients builds the client set from cfg. The global-service clients are
// pinned to GlobalRegion regardless of cfg.Region.
func NewClients(cfg aws.Config, accountID string) *Clients {
	global := cfg.Copy()
	global.Region = GlobalRegion

	return &Clients{
		S3:         s3.NewFromConfig(cfg),
		CloudFront: cloudfront.NewFromConfig(global),
		WAF:        wafv2.NewFromConfig(global),
		Route53:    route53.NewFromConfig(global),
		Logs:       cloudwatchlogs.NewFromConfig(cfg),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
		SNS:        sns.NewFromConfig(cfg),
		SQS:        sqs.NewFromConfig(cfg),
		KMS:        kms.NewFromConfig(cfg),
		IAM:        iam.NewFromConfig(global),
		SSM:        ssm.NewFromConfig(cfg),
		Budgets:    budgets.NewFromConfig(global),
		Orgs:       organizations.NewFromConfig(global),
		CloudTrail: cloudtrail.NewFromConfig(cfg),
		DynamoDB:   dynamodb.NewFromConfig(cfg),
		AccountID:  accountID,
		Region:     cfg.Region,
	}
}

// InRegion rebuilds the regional clients for another region, keeping the
// same credential scope.
func InRegion(cfg aws.Config, accountID, region string) *Clients {
	regional := cfg.Copy()
	regional.Region = region
	return NewClients(regional, accountID)
}
