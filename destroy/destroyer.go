// Package destroy holds the type-specific deletion engines. Engines only
// mutate; dry-run and confirmation gating happen upstream in the
// orchestrator, so a Destroyer call always means "this resource is approved
// for destruction".
package destroy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/yairfalse/purku/awsx"
	"github.com/yairfalse/purku/types"
)

// Outcome is the terminal state of one destruction attempt. A non-nil error
// from Destroy means "failed"; outcomes cover the success shapes.
type Outcome string

const (
	OutcomeDestroyed    Outcome = "destroyed"
	OutcomeLazyDeferred Outcome = "lazy-deferred"
	OutcomeAlreadyGone  Outcome = "already-gone"
)

// Destroyer executes deletions for one credential scope.
type Destroyer struct {
	cfg     aws.Config
	clients *awsx.Clients
	logger  zerolog.Logger
}

// New creates a destroyer bound to one scope. cfg carries the scope's
// credentials and is used to build regional clients where a resource lives
// outside the scope's region (S3 buckets mostly).
func New(cfg aws.Config, clients *awsx.Clients, logger zerolog.Logger) *Destroyer {
	return &Destroyer{cfg: cfg, clients: clients, logger: logger}
}

// Destroy routes a resource to its family engine.
func (d *Destroyer) Destroy(ctx context.Context, r types.Resource) (Outcome, error) {
	switch r.Family {
	case types.FamilyCDN:
		return d.destroyDistribution(ctx, r)
	case types.FamilyEdgeFirewall:
		return d.destroyWebACL(ctx, r)
	case types.FamilyDNS:
		return d.destroyDNS(ctx, r)
	case types.FamilyStorage:
		return d.destroyBucket(ctx, r)
	case types.FamilyObservability:
		return d.destroyObservability(ctx, r)
	case types.FamilyMessaging:
		return d.destroyMessaging(ctx, r)
	case types.FamilyKeyManagement:
		return d.destroyKey(ctx, r)
	case types.FamilyIdentity:
		return d.destroyIdentity(ctx, r)
	case types.FamilyOrganization:
		return d.destroyOrganization(ctx, r)
	case types.FamilyAuditTrail:
		return d.destroyAuditTrail(ctx, r)
	}
	return "", fmt.Errorf("no deletion engine for family %q", r.Family)
}

// s3For returns an S3 client for the bucket's real region. The scope client
// is reused when it already points there.
func (d *Destroyer) s3For(region string) *s3.Client {
	if region == "" || region == d.clients.Region {
		return d.clients.S3
	}
	regional := d.cfg.Copy()
	regional.Region = region
	return s3.NewFromConfig(regional)
}

func (d *Destroyer) destroyBucket(ctx context.Context, r types.Resource) (Outcome, error) {
	engine := NewBucketEngine(d.s3For(r.Region), d.logger)
	return engine.Destroy(ctx, r.ID)
}

func (d *Destroyer) destroyDistribution(ctx context.Context, r types.Resource) (Outcome, error) {
	engine := NewDistributionEngine(d.clients.CloudFront, d.logger)
	return engine.Destroy(ctx, r.ID)
}

// outcomeFromErr folds the at-least-once delete semantics: not-found means a
// previous run (or a concurrent actor) already handled the resource.
func outcomeFromErr(err error) (Outcome, error) {
	if err == nil {
		return OutcomeDestroyed, nil
	}
	if awsx.IsNotFound(err) {
		return OutcomeAlreadyGone, nil
	}
	return "", err
}
