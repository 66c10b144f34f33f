package review

import (
	"fmt"

	"medflow/app/config"
	"medflow/app/events"
	"medflow/app/taskmanager"
	"medflow/app/workflow/interfaces"
	"medflow/app/workflow/status"
	"medflow/pkg/contextx"
	"medflow/pkg/log"
)

// RequestEvent asks the review application for a verdict on the outputs
// of a previously executed task.
type RequestEvent struct {
	WorkflowInstanceID  string           `json:"workflow_instance_id"`
	TaskID              string           `json:"task_id"`
	ExecutionID         string           `json:"execution_id"`
	CorrelationID       string           `json:"correlation_id"`
	ApplicationName     string           `json:"application_name"`
	ApplicationVersion  string           `json:"application_version"`
	Mode                string           `json:"mode"`
	ReviewedTaskID      string           `json:"reviewed_task_id"`
	ReviewedExecutionID string           `json:"reviewed_execution_id"`
	Files               []events.Storage `json:"files"`
}

// Plugin is the clinical review runner. Execution only raises the review
// request; the verdict arrives later as a callback carrying the
// reviewer's decision in its metadata.
type Plugin struct {
	event     *events.TaskDispatchEvent
	publisher interfaces.Publisher
}

func Factory(publisher interfaces.Publisher) taskmanager.PluginFactory {
	return func(event *events.TaskDispatchEvent, storage interfaces.StorageService) (taskmanager.TaskPlugin, error) {
		for _, required := range []string{"application_name", "application_version", "reviewed_task_id"} {
			if event.TaskPluginArguments[required] == "" {
				return nil, fmt.Errorf("clinical review task %s missing argument %q", event.TaskID, required)
			}
		}
		return &Plugin{event: event, publisher: publisher}, nil
	}
}

func (p *Plugin) ExecuteTask(ctx *contextx.Context) (*taskmanager.ExecutionStatus, error) {
	args := p.event.TaskPluginArguments
	request := &RequestEvent{
		WorkflowInstanceID:  p.event.WorkflowInstanceID,
		TaskID:              p.event.TaskID,
		ExecutionID:         p.event.ExecutionID,
		CorrelationID:       p.event.CorrelationID,
		ApplicationName:     args["application_name"],
		ApplicationVersion:  args["application_version"],
		Mode:                args["mode"],
		ReviewedTaskID:      args["reviewed_task_id"],
		ReviewedExecutionID: args["reviewed_execution_id"],
		Files:               p.event.Inputs,
	}

	if err := p.publisher.Publish(ctx, config.ClinicalReviewTopic, request); err != nil {
		return nil, err
	}
	return &taskmanager.ExecutionStatus{Status: status.ACCEPTED}, nil
}

// GetStatus turns the reviewer's decision into a task outcome. A callback
// without a decision is malformed.
func (p *Plugin) GetStatus(ctx *contextx.Context, identity string, callback *events.TaskCallbackEvent) (*taskmanager.ExecutionStatus, error) {
	acceptance, ok := callback.Metadata["acceptance"].(bool)
	if !ok {
		return nil, fmt.Errorf("review callback for job %s carries no acceptance decision", identity)
	}

	stats := map[string]string{}
	if userId, ok := callback.Metadata["user_id"].(string); ok {
		stats["reviewer"] = userId
	}

	if !acceptance {
		message, _ := callback.Metadata["reason"].(string)
		return &taskmanager.ExecutionStatus{
			Status:        status.FAILED,
			FailureReason: "rejected",
			Errors:        message,
			Stats:         stats,
		}, nil
	}
	return &taskmanager.ExecutionStatus{Status: status.SUCCEEDED, Stats: stats}, nil
}

func (p *Plugin) HandleTimeout(ctx *contextx.Context, identity string) error {
	// nothing to tear down, the review application owns the session
	log.Warnf(ctx, "review job %s timed out", identity)
	return nil
}

func (p *Plugin) Cleanup(ctx *contextx.Context) error {
	return nil
}
