package scan

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yairfalse/purku/types"
)

// Messaging lists project SNS topics and SQS queues in the scope's region.
func (s *Scanner) Messaging(ctx context.Context) ([]types.Resource, error) {
	resources, err := s.listTopics(ctx)
	if err != nil {
		return nil, err
	}

	queues, err := s.listQueues(ctx)
	if err != nil {
		return nil, err
	}
	return append(resources, queues...), nil
}

func (s *Scanner) listTopics(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := sns.NewListTopicsPaginator(s.clients.SNS, &sns.ListTopicsInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list topics: %w", err)
		}
		for _, topic := range out.Topics {
			arn := aws.ToString(topic.TopicArn)
			name := lastARNSegment(arn)
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyMessaging, name, arn)
			r.Meta = map[string]string{"kind": "topic"}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func (s *Scanner) listQueues(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := sqs.NewListQueuesPaginator(s.clients.SQS, &sqs.ListQueuesInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list queues: %w", err)
		}
		for _, url := range out.QueueUrls {
			name := lastARNSegment(url)
			if !s.matches(name) {
				continue
			}
			r := s.resource(types.FamilyMessaging, name, "")
			r.Meta = map[string]string{"kind": "queue", "queue_url": url}
			resources = append(resources, r)
		}
	}
	return resources, nil
}
