package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sfn/types"
)

// sfnInput is the Step Functions state machine input. The state machine is
// a single Wait state on $.when followed by a task that POSTs the payload
// to the trigger endpoint.
type sfnInput struct {
	When    string         `json:"when"`
	Payload TriggerPayload `json:"payload"`
}

// SFNGateway implements Gateway on AWS Step Functions standard workflows.
// Executions are named reminder-{id}-{millis} so Disarm can find every
// running execution of a reminder by prefix.
type SFNGateway struct {
	client          *sfn.Client
	stateMachineARN string
	now             func() time.Time
}

func NewSFNGateway(client *sfn.Client, stateMachineARN string) *SFNGateway {
	return &SFNGateway{
		client:          client,
		stateMachineARN: stateMachineARN,
		now:             time.Now,
	}
}

func (g *SFNGateway) Arm(ctx context.Context, payload TriggerPayload, fireAt time.Time) (string, error) {
	input, err := json.Marshal(sfnInput{
		When:    fireAt.UTC().Format(time.RFC3339),
		Payload: payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal scheduler input: %w", err)
	}

	out, err := g.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(g.stateMachineARN),
		Name:            aws.String(g.executionName(payload.ReminderID)),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start execution: %w", err)
	}
	return aws.ToString(out.ExecutionArn), nil
}

func (g *SFNGateway) Disarm(ctx context.Context, reminderID int64) error {
	prefix := executionNamePrefix(reminderID)

	paginator := sfn.NewListExecutionsPaginator(g.client, &sfn.ListExecutionsInput{
		StateMachineArn: aws.String(g.stateMachineARN),
		StatusFilter:    types.ExecutionStatusRunning,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list executions: %w", err)
		}
		for _, exec := range page.Executions {
			if !strings.HasPrefix(aws.ToString(exec.Name), prefix) {
				continue
			}
			// Best effort: a stop failure is tolerable, the stale token
			// check neutralizes the trigger anyway.
			_, _ = g.client.StopExecution(ctx, &sfn.StopExecutionInput{
				ExecutionArn: exec.ExecutionArn,
			})
		}
	}
	return nil
}

func (g *SFNGateway) executionName(reminderID int64) string {
	return fmt.Sprintf("%s%d", executionNamePrefix(reminderID), g.now().UnixMilli())
}

func executionNamePrefix(reminderID int64) string {
	return fmt.Sprintf("reminder-%d-", reminderID)
}
