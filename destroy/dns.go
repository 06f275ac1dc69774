package destroy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/yairfalse/purku/awsx"
	"github.com/yairfalse/purku/types"
)

func (d *Destroyer) destroyDNS(ctx context.Context, r types.Resource) (Outcome, error) {
	switch r.MetaValue("kind") {
	case "health-check":
		_, err := d.clients.Route53.DeleteHealthCheck(ctx, &route53.DeleteHealthCheckInput{
			HealthCheckId: aws.String(r.MetaValue("health_check_id")),
		})
		return outcomeFromErr(err)
	default:
		return d.destroyHostedZone(ctx, r.MetaValue("zone_id"))
	}
}

// destroyHostedZone purges every record set except the zone's NS and SOA
// (those die with the zone), then deletes the zone.
func (d *Destroyer) destroyHostedZone(ctx context.Context, zoneID string) (Outcome, error) {
	if err := d.purgeRecordSets(ctx, zoneID); err != nil {
		if awsx.IsNotFound(err) {
			return OutcomeAlreadyGone, nil
		}
		return "", err
	}

	_, err := d.clients.Route53.DeleteHostedZone(ctx, &route53.DeleteHostedZoneInput{
		Id: aws.String(zoneID),
	})
	return outcomeFromErr(err)
}

func (d *Destroyer) purgeRecordSets(ctx context.Context, zoneID string) error {
	paginator := route53.NewListResourceRecordSetsPaginator(d.clients.Route53, &route53.ListResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
	})

	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list record sets in %s: %w", zoneID, err)
		}

		changes := deletableRecordChanges(out.ResourceRecordSets)
		if len(changes) == 0 {
			continue
		}

		_, err = d.clients.Route53.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
			HostedZoneId: aws.String(zoneID),
			ChangeBatch:  &r53types.ChangeBatch{Changes: changes},
		})
		if err != nil {
			return fmt.Errorf("delete record sets in %s: %w", zoneID, err)
		}
	}
	return nil
}

func deletableRecordChanges(records []r53types.ResourceRecordSet) []r53types.Change {
	var changes []r53types.Change
	for _, record := range records {
		if record.Type == r53types.RRTypeNs || record.Type == r53types.RRTypeSoa {
			continue
		}
		record := record
		changes = append(changes, r53types.Change{
			Action:            r53types.ChangeActionDelete,
			ResourceRecordSet: &record,
		})
	}
	return changes
}
