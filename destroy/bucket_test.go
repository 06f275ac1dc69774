package destroy

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 simulates a versioned bucket: a pool of object versions drained by
// DeleteObjects, plus switches to force the failure branches.
type fakeS3 struct {
	exists        bool
	versions      []s3types.ObjectVersion
	markers       []s3types.DeleteMarkerEntry
	deleteRefused bool

	listCalls        int
	deleteObjCalls   int
	deleteBucketOK   bool
	lifecycleApplied *s3types.BucketLifecycleConfiguration
}

func notFound(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.exists {
		return nil, notFound("NotFound")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) PutBucketVersioning(_ context.Context, _ *s3.PutBucketVersioningInput, _ ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error) {
	return &s3.PutBucketVersioningOutput{}, nil
}

func (f *fakeS3) PutBucketLogging(_ context.Context, _ *s3.PutBucketLoggingInput, _ ...func(*s3.Options)) (*s3.PutBucketLoggingOutput, error) {
	return &s3.PutBucketLoggingOutput{}, nil
}

func (f *fakeS3) DeleteBucketLifecycle(_ context.Context, _ *s3.DeleteBucketLifecycleInput, _ ...func(*s3.Options)) (*s3.DeleteBucketLifecycleOutput, error) {
	return &s3.DeleteBucketLifecycleOutput{}, nil
}

func (f *fakeS3) ListObjectVersions(_ context.Context, params *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	f.listCalls++
	page := int(aws.ToInt32(params.MaxKeys))
	out := &s3.ListObjectVersionsOutput{}
	if len(f.versions) > 0 {
		n := min(page, len(f.versions))
		out.Versions = f.versions[:n]
	}
	if remaining := page - len(out.Versions); remaining > 0 && len(f.markers) > 0 {
		n := min(remaining, len(f.markers))
		out.DeleteMarkers = f.markers[:n]
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.deleteObjCalls++
	for range params.Delete.Objects {
		if len(f.versions) > 0 {
			f.versions = f.versions[1:]
		} else if len(f.markers) > 0 {
			f.markers = f.markers[1:]
		}
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) DeleteBucket(_ context.Context, _ *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	if f.deleteRefused {
		return nil, &smithy.GenericAPIError{Code: "BucketNotEmpty", Message: "bucket not empty"}
	}
	f.deleteBucketOK = true
	return &s3.DeleteBucketOutput{}, nil
}

func (f *fakeS3) PutBucketLifecycleConfiguration(_ context.Context, params *s3.PutBucketLifecycleConfigurationInput, _ ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error) {
	f.lifecycleApplied = params.LifecycleConfiguration
	return &s3.PutBucketLifecycleConfigurationOutput{}, nil
}

func makeVersions(n int) []s3types.ObjectVersion {
	versions := make([]s3types.ObjectVersion, n)
	for i := range versions {
		versions[i] = s3types.ObjectVersion{
			Key:       aws.String(fmt.Sprintf("logs/%06d", i)),
			VersionId: aws.String(fmt.Sprintf("v%06d", i)),
		}
	}
	return versions
}

func TestBucketEngineEmptiesAndDeletes(t *testing.T) {
	fake := &fakeS3{exists: true, versions: makeVersions(1500)}
	engine := NewBucketEngine(fake, zerolog.Nop())

	outcome, err := engine.Destroy(context.Background(), "proj-prod-assets")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDestroyed, outcome)

	// 1500 versions drain in two full delete batches; the third list
	// confirms empty.
	assert.Equal(t, 2, fake.deleteObjCalls)
	assert.Equal(t, 3, fake.listCalls)
	assert.True(t, fake.deleteBucketOK)
	assert.Nil(t, fake.lifecycleApplied)
}

func TestBucketEngineDeleteMarkersDrained(t *testing.T) {
	fake := &fakeS3{
		exists:   true,
		versions: makeVersions(10),
		markers: []s3types.DeleteMarkerEntry{
			{Key: aws.String("logs/old"), VersionId: aws.String("m1")},
		},
	}
	engine := NewBucketEngine(fake, zerolog.Nop())

	outcome, err := engine.Destroy(context.Background(), "proj-prod-assets")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDestroyed, outcome)
	assert.Empty(t, fake.markers)
}

func TestBucketEngineLazyDefersWhenDeleteRefused(t *testing.T) {
	fake := &fakeS3{exists: true, deleteRefused: true}
	engine := NewBucketEngine(fake, zerolog.Nop())

	outcome, err := engine.Destroy(context.Background(), "proj-prod-access-logs")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLazyDeferred, outcome)

	require.NotNil(t, fake.lifecycleApplied)
	require.Len(t, fake.lifecycleApplied.Rules, 1)
	rule := fake.lifecycleApplied.Rules[0]
	assert.Equal(t, int32(LazyExpiryDays), aws.ToInt32(rule.Expiration.Days))
	assert.Equal(t, int32(LazyExpiryDays), aws.ToInt32(rule.NoncurrentVersionExpiration.NoncurrentDays))
	assert.Equal(t, int32(LazyExpiryDays), aws.ToInt32(rule.AbortIncompleteMultipartUpload.DaysAfterInitiation))
}

func TestBucketEngineAlreadyGone(t *testing.T) {
	fake := &fakeS3{exists: false}
	engine := NewBucketEngine(fake, zerolog.Nop())

	outcome, err := engine.Destroy(context.Background(), "proj-prod-assets")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyGone, outcome)
	assert.Zero(t, fake.listCalls)
}

func TestChunkObjects(t *testing.T) {
	tests := []struct {
		name   string
		count  int
		size   int
		chunks int
	}{
		{"empty", 0, 1000, 0},
		{"single partial", 7, 1000, 1},
		{"exact boundary", 1000, 1000, 1},
		{"one over", 1001, 1000, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects := make([]s3types.ObjectIdentifier, tt.count)
			chunks := chunkObjects(objects, tt.size)
			assert.Len(t, chunks, tt.chunks)

			total := 0
			for _, chunk := range chunks {
				total += len(chunk)
			}
			assert.Equal(t, tt.count, total)
		})
	}
}
