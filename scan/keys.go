package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/yairfalse/purku/types"
)

// KeyManagement lists project KMS aliases in the scope's region. Keys are
// reached through their aliases: a customer key without a project alias is
// not ours to touch.
func (s *Scanner) KeyManagement(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := kms.NewListAliasesPaginator(s.clients.KMS, &kms.ListAliasesInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list aliases: %w", err)
		}
		for _, alias := range out.Aliases {
			name := aws.ToString(alias.AliasName)
			if strings.HasPrefix(name, "alias/aws/") {
				continue // AWS-managed keys are never candidates
			}
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyKeyManagement, name, aws.ToString(alias.AliasArn))
			r.Meta = map[string]string{
				"kind":   "alias",
				"key_id": aws.ToString(alias.TargetKeyId),
			}
			resources = append(resources, r)
		}
	}
	return resources, nil
}
