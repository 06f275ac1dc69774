package destroy

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/rs/zerolog"

	"github.com/yairfalse/purku/awsx"
)

const (
	// DistributionPollInterval spaces the Deployed-status polls while a
	// disable propagates to the edge.
	DistributionPollInterval = 20 * time.Second

	// DistributionMaxPolls bounds the wait (~10 minutes). CloudFront
	// disables usually settle in 3-5.
	DistributionMaxPolls = 30

	statusDeployed = "Deployed"
)

// CloudFrontAPI is the slice of the CloudFront client the engine needs.
type CloudFrontAPI interface {
	GetDistribution(ctx context.Context, params *cloudfront.GetDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionOutput, error)
	GetDistributionConfig(ctx context.Context, params *cloudfront.GetDistributionConfigInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionConfigOutput, error)
	UpdateDistribution(ctx context.Context, params *cloudfront.UpdateDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.UpdateDistributionOutput, error)
	DeleteDistribution(ctx context.Context, params *cloudfront.DeleteDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.DeleteDistributionOutput, error)
}

// DistributionEngine deletes CloudFront distributions. Deletion is a
// two-step state transition: an enabled distribution must be disabled and
// the disable must reach Deployed status before the delete call is legal.
type DistributionEngine struct {
	cf           CloudFrontAPI
	logger       zerolog.Logger
	pollInterval time.Duration
	maxPolls     int
}

// NewDistributionEngine creates an engine with the default poll policy.
func NewDistributionEngine(client CloudFrontAPI, logger zerolog.Logger) *DistributionEngine {
	return &DistributionEngine{
		cf:           client,
		logger:       logger,
		pollInterval: DistributionPollInterval,
		maxPolls:     DistributionMaxPolls,
	}
}

// Destroy disables, waits out the propagation, and deletes a distribution.
func (e *DistributionEngine) Destroy(ctx context.Context, id string) (Outcome, error) {
	cfgOut, err := e.cf.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{Id: aws.String(id)})
	if awsx.IsNotFound(err) {
		return OutcomeAlreadyGone, nil
	}
	if err != nil {
		return "", fmt.Errorf("get distribution config %s: %w", id, err)
	}

	if aws.ToBool(cfgOut.DistributionConfig.Enabled) {
		e.logger.Info().Str("distribution", id).Msg("disabling distribution")
		cfgOut.DistributionConfig.Enabled = aws.Bool(false)
		_, err := e.cf.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
			Id:                 aws.String(id),
			IfMatch:            cfgOut.ETag,
			DistributionConfig: cfgOut.DistributionConfig,
		})
		if err != nil {
			return "", fmt.Errorf("disable distribution %s: %w", id, err)
		}
	}

	if err := e.waitDeployed(ctx, id); err != nil {
		return "", err
	}

	// The disable changed the ETag; fetch a fresh one for the delete.
	cfgOut, err = e.cf.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{Id: aws.String(id)})
	if awsx.IsNotFound(err) {
		return OutcomeAlreadyGone, nil
	}
	if err != nil {
		return "", fmt.Errorf("refresh distribution config %s: %w", id, err)
	}

	_, err = e.cf.DeleteDistribution(ctx, &cloudfront.DeleteDistributionInput{
		Id:      aws.String(id),
		IfMatch: cfgOut.ETag,
	})
	if awsx.IsNotFound(err) {
		return OutcomeAlreadyGone, nil
	}
	if err != nil {
		return "", fmt.Errorf("delete distribution %s: %w", id, err)
	}

	e.logger.Info().Str("distribution", id).Msg("distribution deleted")
	return OutcomeDestroyed, nil
}

func (e *DistributionEngine) waitDeployed(ctx context.Context, id string) error {
	for poll := 0; poll < e.maxPolls; poll++ {
		out, err := e.cf.GetDistribution(ctx, &cloudfront.GetDistributionInput{Id: aws.String(id)})
		if err != nil {
			return fmt.Errorf("poll distribution %s: %w", id, err)
		}
		if aws.ToString(out.Distribution.Status) == statusDeployed {
			return nil
		}

		e.logger.Debug().
			Str("distribution", id).
			Str("status", aws.ToString(out.Distribution.Status)).
			Int("poll", poll+1).
			Msg("waiting for distribution to settle")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.pollInterval):
		}
	}
	return fmt.Errorf("distribution %s not deployed after %d polls", id, e.maxPolls)
}
