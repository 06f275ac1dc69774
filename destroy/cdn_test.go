package destroy

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCloudFront models the disable-then-delete lifecycle: the distribution
// sits InProgress for a few polls after the disable, then settles Deployed.
type fakeCloudFront struct {
	exists        bool
	enabled       bool
	etag          int
	pollsToSettle int

	polls      int
	disabled   bool
	deleted    bool
	deleteETag string
	updateETag string
}

func (f *fakeCloudFront) tag() string {
	return []string{"E1", "E2", "E3", "E4"}[f.etag%4]
}

func (f *fakeCloudFront) GetDistribution(_ context.Context, _ *cloudfront.GetDistributionInput, _ ...func(*cloudfront.Options)) (*cloudfront.GetDistributionOutput, error) {
	if !f.exists {
		return nil, notFound("NoSuchDistribution")
	}
	f.polls++
	status := "InProgress"
	if f.polls > f.pollsToSettle {
		status = "Deployed"
	}
	return &cloudfront.GetDistributionOutput{
		Distribution: &cftypes.Distribution{Status: aws.String(status)},
	}, nil
}

func (f *fakeCloudFront) GetDistributionConfig(_ context.Context, _ *cloudfront.GetDistributionConfigInput, _ ...func(*cloudfront.Options)) (*cloudfront.GetDistributionConfigOutput, error) {
	if !f.exists {
		return nil, notFound("NoSuchDistribution")
	}
	return &cloudfront.GetDistributionConfigOutput{
		ETag: aws.String(f.tag()),
		DistributionConfig: &cftypes.DistributionConfig{
			Enabled: aws.Bool(f.enabled),
		},
	}, nil
}

func (f *fakeCloudFront) UpdateDistribution(_ context.Context, params *cloudfront.UpdateDistributionInput, _ ...func(*cloudfront.Options)) (*cloudfront.UpdateDistributionOutput, error) {
	f.updateETag = aws.ToString(params.IfMatch)
	f.enabled = false
	f.disabled = true
	f.etag++
	return &cloudfront.UpdateDistributionOutput{}, nil
}

func (f *fakeCloudFront) DeleteDistribution(_ context.Context, params *cloudfront.DeleteDistributionInput, _ ...func(*cloudfront.Options)) (*cloudfront.DeleteDistributionOutput, error) {
	f.deleteETag = aws.ToString(params.IfMatch)
	f.deleted = true
	f.exists = false
	return &cloudfront.DeleteDistributionOutput{}, nil
}

func testDistributionEngine(client CloudFrontAPI) *DistributionEngine {
	engine := NewDistributionEngine(client, zerolog.Nop())
	engine.pollInterval = time.Millisecond
	return engine
}

func TestDistributionEngineDisablesThenDeletes(t *testing.T) {
	fake := &fakeCloudFront{exists: true, enabled: true, pollsToSettle: 3}
	engine := testDistributionEngine(fake)

	outcome, err := engine.Destroy(context.Background(), "EDFDVBD6EXAMPLE")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDestroyed, outcome)
	assert.True(t, fake.disabled)
	assert.True(t, fake.deleted)

	// The delete must carry the post-disable ETag, not the one the disable
	// consumed.
	assert.NotEqual(t, fake.updateETag, fake.deleteETag)
}

func TestDistributionEngineSkipsDisableWhenAlreadyOff(t *testing.T) {
	fake := &fakeCloudFront{exists: true, enabled: false}
	engine := testDistributionEngine(fake)

	outcome, err := engine.Destroy(context.Background(), "EDFDVBD6EXAMPLE")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDestroyed, outcome)
	assert.False(t, fake.disabled)
	assert.True(t, fake.deleted)
}

func TestDistributionEngineAlreadyGone(t *testing.T) {
	fake := &fakeCloudFront{exists: false}
	engine := testDistributionEngine(fake)

	outcome, err := engine.Destroy(context.Background(), "EDFDVBD6EXAMPLE")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyGone, outcome)
	assert.False(t, fake.deleted)
}

func TestDistributionEnginePollCeiling(t *testing.T) {
	fake := &fakeCloudFront{exists: true, enabled: true, pollsToSettle: 100}
	engine := testDistributionEngine(fake)
	engine.maxPolls = 2

	_, err := engine.Destroy(context.Background(), "EDFDVBD6EXAMPLE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not deployed after")
	assert.False(t, fake.deleted)
}
