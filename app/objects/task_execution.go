package objects

import (
	"encoding/json"
	"time"
)

// Failure reasons carried on a task execution and on task update events.
const (
	ReasonNone                 = "none"
	ReasonInvalidMessage       = "invalid_message"
	ReasonPluginError          = "plugin_error"
	ReasonExternalServiceError = "external_service_error"
	ReasonRunnerNotSupported   = "runner_not_supported"
	ReasonTimedOut             = "timed_out"
	ReasonUnsupportedType      = "unsupported_type"
	ReasonUnknown              = "unknown"
)

type TaskExecution struct {
	ExecutionID            string                 `json:"execution_id" bson:"execution_id"`
	WorkflowInstanceID     string                 `json:"workflow_instance_id" bson:"workflow_instance_id"`
	TaskType               string                 `json:"task_type" bson:"task_type"`
	TaskStartTime          time.Time              `json:"task_start_time" bson:"task_start_time"`
	TaskEndTime            *time.Time             `json:"task_end_time,omitempty" bson:"task_end_time,omitempty"`
	ExecutionStats         map[string]string      `json:"execution_stats" bson:"execution_stats"`
	TaskPluginArguments    map[string]string      `json:"task_plugin_arguments" bson:"task_plugin_arguments"`
	TaskID                 string                 `json:"task_id" bson:"task_id"`
	PreviousTaskID         string                 `json:"previous_task_id" bson:"previous_task_id"`
	Status                 string                 `json:"status" bson:"status"`
	Reason                 string                 `json:"reason" bson:"reason"`
	InputArtifacts         map[string]string      `json:"input_artifacts" bson:"input_artifacts"`
	OutputArtifacts        map[string]string      `json:"output_artifacts" bson:"output_artifacts"`
	OutputDirectory        string                 `json:"output_directory" bson:"output_directory"`
	ResultMetadata         map[string]interface{} `json:"result" bson:"result"`
	TimeoutInterval        float64                `json:"timeout_interval" bson:"timeout_interval"`
	AcknowledgedTaskErrors *time.Time             `json:"acknowledged_task_errors,omitempty" bson:"acknowledged_task_errors,omitempty"`
}

// Timeout is the deadline past which an external scheduler should cancel
// the task.
func (t *TaskExecution) Timeout() time.Time {
	return t.TaskStartTime.Add(time.Duration(t.TimeoutInterval * float64(time.Minute)))
}

func (t TaskExecution) String() string {
	data, _ := json.Marshal(&t)
	return string(data)
}
