package scan

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/yairfalse/purku/types"
)

// Observability lists project log groups, alarms, composite alarms and
// dashboards in the scope's region.
func (s *Scanner) Observability(ctx context.Context) ([]types.Resource, error) {
	resources, err := s.listLogGroups(ctx)
	if err != nil {
		return nil, err
	}

	alarms, err := s.listAlarms(ctx)
	if err != nil {
		return nil, err
	}
	resources = append(resources, alarms...)

	dashboards, err := s.listDashboards(ctx)
	if err != nil {
		return nil, err
	}
	return append(resources, dashboards...), nil
}

func (s *Scanner) listLogGroups(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := cloudwatchlogs.NewDescribeLogGroupsPaginator(s.clients.Logs, &cloudwatchlogs.DescribeLogGroupsInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe log groups: %w", err)
		}
		for _, group := range out.LogGroups {
			name := aws.ToString(group.LogGroupName)
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyObservability, name, aws.ToString(group.Arn))
			r.Meta = map[string]string{"kind": "log-group"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

// listAlarms picks up metric and composite alarms in one pass. Composite
// alarms are tagged so the deletion engine can remove them first; a metric
// alarm referenced by a composite cannot be deleted.
func (s *Scanner) listAlarms(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	input := &cloudwatch.DescribeAlarmsInput{
		AlarmTypes: []cwtypes.AlarmType{cwtypes.AlarmTypeMetricAlarm, cwtypes.AlarmTypeCompositeAlarm},
	}
	paginator := cloudwatch.NewDescribeAlarmsPaginator(s.clients.CloudWatch, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe alarms: %w", err)
		}
		for _, alarm := range out.CompositeAlarms {
			name := aws.ToString(alarm.AlarmName)
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyObservability, name, aws.ToString(alarm.AlarmArn))
			r.Meta = map[string]string{"kind": "composite-alarm"}
			resources = append(resources, r)
		}
		for _, alarm := range out.MetricAlarms {
			name := aws.ToString(alarm.AlarmName)
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyObservability, name, aws.ToString(alarm.AlarmArn))
			r.Meta = map[string]string{"kind": "alarm"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func (s *Scanner) listDashboards(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := cloudwatch.NewListDashboardsPaginator(s.clients.CloudWatch, &cloudwatch.ListDashboardsInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list dashboards: %w", err)
		}
		for _, dashboard := range out.DashboardEntries {
			name := aws.ToString(dashboard.DashboardName)
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyObservability, name, aws.ToString(dashboard.DashboardArn))
			r.Meta = map[string]string{"kind": "dashboard"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}
