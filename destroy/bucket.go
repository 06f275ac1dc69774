package destroy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/yairfalse/purku/awsx"
)

// Provider-policy constants, not business logic. Named so operators can
// reason about them; the batch sizes track S3 API limits.
const (
	// ListBatchSize is the S3 maximum for one ListObjectVersions page and
	// one DeleteObjects request.
	ListBatchSize = 1000

	// MaxEmptyBatches caps the purge loop (~500k objects). Past that the
	// bucket is logged as possibly non-empty and the run moves on instead
	// of hanging.
	MaxEmptyBatches = 500

	// LazyExpiryDays is the lifecycle expiry used by the lazy-delete
	// fallback. One day stops billable growth immediately; physical
	// deletion completes asynchronously.
	LazyExpiryDays = 1

	lazyRuleID = "purku-lazy-delete"
)

// S3BucketAPI is the slice of the S3 client the emptying engine needs.
type S3BucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutBucketVersioning(ctx context.Context, params *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
	PutBucketLogging(ctx context.Context, params *s3.PutBucketLoggingInput, optFns ...func(*s3.Options)) (*s3.PutBucketLoggingOutput, error)
	DeleteBucketLifecycle(ctx context.Context, params *s3.DeleteBucketLifecycleInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketLifecycleOutput, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, params *s3.PutBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error)
}

// BucketEngine empties and deletes versioned buckets. Per-bucket state
// machine: Discovered -> Prepared -> Emptying -> Deleted, with a
// LazyDeferred branch when the delete call loses the race against a
// continuous writer.
type BucketEngine struct {
	s3         S3BucketAPI
	logger     zerolog.Logger
	maxBatches int
}

// NewBucketEngine creates an engine over an S3 client pointed at the
// bucket's region.
func NewBucketEngine(client S3BucketAPI, logger zerolog.Logger) *BucketEngine {
	return &BucketEngine{s3: client, logger: logger, maxBatches: MaxEmptyBatches}
}

// Destroy runs the full state machine for one bucket. Idempotent: a bucket
// deleted by an earlier run comes back as OutcomeAlreadyGone, not an error.
func (e *BucketEngine) Destroy(ctx context.Context, bucket string) (Outcome, error) {
	_, err := e.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if awsx.IsNotFound(err) {
		e.logger.Debug().Str("bucket", bucket).Msg("bucket already gone")
		return OutcomeAlreadyGone, nil
	}
	if err != nil {
		return "", fmt.Errorf("head bucket %s: %w", bucket, err)
	}

	if err := e.prepare(ctx, bucket); err != nil {
		if awsx.IsNotFound(err) {
			return OutcomeAlreadyGone, nil
		}
		return "", err
	}

	if err := e.empty(ctx, bucket); err != nil {
		if awsx.IsNotFound(err) {
			return OutcomeAlreadyGone, nil
		}
		return "", err
	}

	_, err = e.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		e.logger.Info().Str("bucket", bucket).Msg("bucket deleted")
		return OutcomeDestroyed, nil
	}
	if awsx.IsNotFound(err) {
		return OutcomeAlreadyGone, nil
	}

	// A continuous writer (access-log delivery, CloudTrail) can repopulate
	// the bucket between the last empty list and the delete call. Instead
	// of reporting a failure that needs manual retry, hand the bucket to a
	// short-expiry lifecycle: billing stops now, S3 finishes the deletion
	// asynchronously.
	e.logger.Warn().
		Str("bucket", bucket).
		Str("error_code", awsx.ErrorCode(err)).
		Msg("immediate delete failed, applying lazy-delete lifecycle")
	return e.lazyDefer(ctx, bucket)
}

// prepare closes the race window before emptying: suspend versioning, stop
// access-log delivery into the bucket, and drop lifecycle rules that could
// recreate state mid-purge.
func (e *BucketEngine) prepare(ctx context.Context, bucket string) error {
	_, err := e.s3.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(bucket),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusSuspended,
		},
	})
	if err != nil {
		return fmt.Errorf("suspend versioning on %s: %w", bucket, err)
	}

	_, err = e.s3.PutBucketLogging(ctx, &s3.PutBucketLoggingInput{
		Bucket:              aws.String(bucket),
		BucketLoggingStatus: &s3types.BucketLoggingStatus{},
	})
	if err != nil {
		return fmt.Errorf("disable access logging on %s: %w", bucket, err)
	}

	_, err = e.s3.DeleteBucketLifecycle(ctx, &s3.DeleteBucketLifecycleInput{Bucket: aws.String(bucket)})
	if err != nil && !awsx.IsNotFound(err) {
		return fmt.Errorf("clear lifecycle on %s: %w", bucket, err)
	}
	return nil
}

// empty purges object versions and delete markers, one batched DeleteObjects
// per list page, until the listing drains or the batch ceiling trips.
func (e *BucketEngine) empty(ctx context.Context, bucket string) error {
	for batch := 0; batch < e.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := e.s3.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:  aws.String(bucket),
			MaxKeys: aws.Int32(ListBatchSize),
		})
		if err != nil {
			return fmt.Errorf("list object versions in %s: %w", bucket, err)
		}

		objects := collectVersions(out)
		if len(objects) == 0 {
			return nil
		}

		for _, chunk := range chunkObjects(objects, ListBatchSize) {
			_, err := e.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &s3types.Delete{Objects: chunk, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return fmt.Errorf("delete objects in %s: %w", bucket, err)
			}
		}
	}

	e.logger.Warn().
		Str("bucket", bucket).
		Int("batches", e.maxBatches).
		Msg("batch ceiling reached, bucket may not be empty")
	return nil
}

// lazyDefer applies the 1-day expiry lifecycle: expire current versions,
// expire noncurrent versions, abort incomplete multipart uploads.
func (e *BucketEngine) lazyDefer(ctx context.Context, bucket string) (Outcome, error) {
	_, err := e.s3.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(bucket),
		LifecycleConfiguration: &s3types.BucketLifecycleConfiguration{
			Rules: []s3types.LifecycleRule{{
				ID:     aws.String(lazyRuleID),
				Status: s3types.ExpirationStatusEnabled,
				Filter: &s3types.LifecycleRuleFilter{Prefix: aws.String("")},
				Expiration: &s3types.LifecycleExpiration{
					Days: aws.Int32(LazyExpiryDays),
				},
				NoncurrentVersionExpiration: &s3types.NoncurrentVersionExpiration{
					NoncurrentDays: aws.Int32(LazyExpiryDays),
				},
				AbortIncompleteMultipartUpload: &s3types.AbortIncompleteMultipartUpload{
					DaysAfterInitiation: aws.Int32(LazyExpiryDays),
				},
			}},
		},
	})
	if err != nil {
		if awsx.IsNotFound(err) {
			return OutcomeAlreadyGone, nil
		}
		return "", fmt.Errorf("apply lazy-delete lifecycle to %s: %w", bucket, err)
	}

	e.logger.Info().Str("bucket", bucket).Int("expiry_days", LazyExpiryDays).Msg("bucket lazily deferred")
	return OutcomeLazyDeferred, nil
}

func collectVersions(out *s3.ListObjectVersionsOutput) []s3types.ObjectIdentifier {
	objects := make([]s3types.ObjectIdentifier, 0, len(out.Versions)+len(out.DeleteMarkers))
	for _, v := range out.Versions {
		objects = append(objects, s3types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
	}
	for _, m := range out.DeleteMarkers {
		objects = append(objects, s3types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
	}
	return objects
}

func chunkObjects(objects []s3types.ObjectIdentifier, size int) [][]s3types.ObjectIdentifier {
	var chunks [][]s3types.ObjectIdentifier
	for len(objects) > size {
		chunks = append(chunks, objects[:size])
		objects = objects[size:]
	}
	if len(objects) > 0 {
		chunks = append(chunks, objects)
	}
	return chunks
}
