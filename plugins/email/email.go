package email

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"medflow/app/config"
	"medflow/app/events"
	"medflow/app/taskmanager"
	"medflow/app/workflow/interfaces"
	"medflow/app/workflow/status"
	"medflow/pkg/contextx"
)

// RequestEvent is handed to the notification service for delivery.
type RequestEvent struct {
	ID                 string            `json:"id"`
	WorkflowInstanceID string            `json:"workflow_instance_id"`
	TaskID             string            `json:"task_id"`
	ExecutionID        string            `json:"execution_id"`
	CorrelationID      string            `json:"correlation_id"`
	WorkflowName       string            `json:"workflow_name,omitempty"`
	Emails             []string          `json:"emails,omitempty"`
	Roles              []string          `json:"roles,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Plugin raises a notification email for the task. The job is complete
// once the request is on the queue, there is no callback leg.
type Plugin struct {
	event     *events.TaskDispatchEvent
	publisher interfaces.Publisher
}

func Factory(publisher interfaces.Publisher) taskmanager.PluginFactory {
	return func(event *events.TaskDispatchEvent, storage interfaces.StorageService) (taskmanager.TaskPlugin, error) {
		args := event.TaskPluginArguments
		if args["recipient_emails"] == "" && args["recipient_roles"] == "" {
			return nil, fmt.Errorf("email task %s names neither recipient emails nor roles", event.TaskID)
		}
		return &Plugin{event: event, publisher: publisher}, nil
	}
}

func (p *Plugin) ExecuteTask(ctx *contextx.Context) (*taskmanager.ExecutionStatus, error) {
	args := p.event.TaskPluginArguments

	metadata := map[string]string{}
	for _, key := range strings.Split(args["metadata_values"], ",") {
		if key = strings.TrimSpace(key); key != "" {
			metadata[key] = ""
		}
	}

	request := &RequestEvent{
		ID:                 uuid.NewString(),
		WorkflowInstanceID: p.event.WorkflowInstanceID,
		TaskID:             p.event.TaskID,
		ExecutionID:        p.event.ExecutionID,
		CorrelationID:      p.event.CorrelationID,
		WorkflowName:       args["workflow_name"],
		Emails:             splitList(args["recipient_emails"]),
		Roles:              splitList(args["recipient_roles"]),
		Metadata:           metadata,
	}

	if err := p.publisher.Publish(ctx, config.EmailRequestTopic, request); err != nil {
		return nil, err
	}
	return &taskmanager.ExecutionStatus{Status: status.SUCCEEDED}, nil
}

func (p *Plugin) GetStatus(ctx *contextx.Context, identity string, callback *events.TaskCallbackEvent) (*taskmanager.ExecutionStatus, error) {
	return &taskmanager.ExecutionStatus{Status: status.SUCCEEDED}, nil
}

func (p *Plugin) HandleTimeout(ctx *contextx.Context, identity string) error {
	return nil
}

func (p *Plugin) Cleanup(ctx *contextx.Context) error {
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
