package destroy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/yairfalse/purku/awsx"
	"github.com/yairfalse/purku/types"
)

// KMSPendingWindowDays is the key-deletion pending window. Seven days is the
// provider minimum; keys are never deleted immediately, so a bad run can
// still be cancelled.
const KMSPendingWindowDays = 7

// destroyKey removes the alias and schedules the underlying key for
// deletion. A key already pending deletion counts as handled.
func (d *Destroyer) destroyKey(ctx context.Context, r types.Resource) (Outcome, error) {
	_, err := d.clients.KMS.DeleteAlias(ctx, &kms.DeleteAliasInput{
		AliasName: aws.String(r.ID),
	})
	if err != nil && !awsx.IsNotFound(err) {
		return "", fmt.Errorf("delete alias %s: %w", r.ID, err)
	}

	keyID := r.MetaValue("key_id")
	if keyID == "" {
		return OutcomeDestroyed, nil
	}

	desc, err := d.clients.KMS.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(keyID)})
	if awsx.IsNotFound(err) {
		return OutcomeAlreadyGone, nil
	}
	if err != nil {
		return "", fmt.Errorf("describe key %s: %w", keyID, err)
	}
	if desc.KeyMetadata.KeyState == kmstypes.KeyStatePendingDeletion {
		return OutcomeAlreadyGone, nil
	}

	_, err = d.clients.KMS.ScheduleKeyDeletion(ctx, &kms.ScheduleKeyDeletionInput{
		KeyId:               aws.String(keyID),
		PendingWindowInDays: aws.Int32(KMSPendingWindowDays),
	})
	if err != nil {
		if awsx.IsNotFound(err) {
			return OutcomeAlreadyGone, nil
		}
		return "", fmt.Errorf("schedule key deletion %s: %w", keyID, err)
	}

	d.logger.Info().
		Str("key_id", keyID).
		Int("pending_days", KMSPendingWindowDays).
		Msg("key deletion scheduled")
	return OutcomeDestroyed, nil
}
