package events

import (
	"encoding/json"
	"errors"
	"time"
)

// Export status values reported by the informatics gateway.
const (
	ExportStatusSuccess        = "Success"
	ExportStatusFailure        = "Failure"
	ExportStatusPartialFailure = "PartialFailure"
)

type WorkflowRequestEvent struct {
	Bucket          string            `json:"bucket"`
	PayloadID       string            `json:"payload_id"`
	Workflows       []string          `json:"workflows"`
	FileCount       int               `json:"file_count"`
	CorrelationID   string            `json:"correlation_id"`
	CallingAeTitle  string            `json:"calling_aetitle"`
	CalledAeTitle   string            `json:"called_aetitle"`
	Timestamp       time.Time         `json:"timestamp"`
	PayloadMetadata map[string]string `json:"metadata,omitempty"`
}

func (e *WorkflowRequestEvent) Validate() error {
	if e.Bucket == "" || e.PayloadID == "" || e.CorrelationID == "" {
		return errors.New("workflow request event missing required fields")
	}
	if len(e.Workflows) == 0 && e.CalledAeTitle == "" {
		return errors.New("workflow request event carries neither workflows nor an AE title")
	}
	return nil
}

// Storage describes where a task's input or output lives, including the
// credentials handed to the runner.
type Storage struct {
	Name              string       `json:"name"`
	Endpoint          string       `json:"endpoint"`
	Credentials       *Credentials `json:"credentials,omitempty"`
	Bucket            string       `json:"bucket"`
	RelativeRootPath  string       `json:"relative_root_path"`
	SecuredConnection bool         `json:"secured_connection"`
}

type Credentials struct {
	AccessKey    string `json:"access_key"`
	AccessToken  string `json:"access_token"`
	SessionToken string `json:"session_token,omitempty"`
}

type TaskDispatchEvent struct {
	WorkflowInstanceID  string                 `json:"workflow_instance_id"`
	TaskID              string                 `json:"task_id"`
	ExecutionID         string                 `json:"execution_id"`
	CorrelationID       string                 `json:"correlation_id"`
	PayloadID           string                 `json:"payload_id"`
	Type                string                 `json:"type"`
	Status              string                 `json:"status"`
	TaskPluginArguments map[string]string      `json:"task_plugin_arguments"`
	Inputs              []Storage              `json:"inputs"`
	Outputs             []Storage              `json:"outputs"`
	IntermediateStorage *Storage               `json:"intermediate_storage,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

func (e *TaskDispatchEvent) Validate() error {
	if e.WorkflowInstanceID == "" || e.TaskID == "" || e.ExecutionID == "" || e.CorrelationID == "" {
		return errors.New("task dispatch event missing required fields")
	}
	if e.Type == "" {
		return errors.New("task dispatch event missing task type")
	}
	return nil
}

type TaskCallbackEvent struct {
	WorkflowInstanceID string                 `json:"workflow_instance_id"`
	TaskID             string                 `json:"task_id"`
	ExecutionID        string                 `json:"execution_id"`
	CorrelationID      string                 `json:"correlation_id"`
	Identity           string                 `json:"identity"`
	Outputs            []Storage              `json:"outputs"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

func (e *TaskCallbackEvent) Validate() error {
	if e.WorkflowInstanceID == "" || e.TaskID == "" || e.ExecutionID == "" || e.Identity == "" {
		return errors.New("task callback event missing required fields")
	}
	return nil
}

type TaskUpdateEvent struct {
	WorkflowInstanceID string                 `json:"workflow_instance_id"`
	TaskID             string                 `json:"task_id"`
	ExecutionID        string                 `json:"execution_id"`
	CorrelationID      string                 `json:"correlation_id"`
	Status             string                 `json:"status"`
	Reason             string                 `json:"reason"`
	Message            string                 `json:"message,omitempty"`
	Outputs            []Storage              `json:"outputs,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
	ExecutionStats     map[string]string      `json:"execution_stats,omitempty"`
}

func (e *TaskUpdateEvent) Validate() error {
	if e.WorkflowInstanceID == "" || e.TaskID == "" || e.ExecutionID == "" {
		return errors.New("task update event missing required fields")
	}
	if e.Status == "" {
		return errors.New("task update event missing status")
	}
	return nil
}

type ExportRequestEvent struct {
	WorkflowInstanceID string   `json:"workflow_instance_id"`
	ExportTaskID       string   `json:"export_task_id"`
	CorrelationID      string   `json:"correlation_id"`
	Files              []string `json:"files"`
	Destinations       []string `json:"destinations"`
	// Target carries the remote application entry for external app requests.
	Target           string   `json:"target,omitempty"`
	PluginAssemblies []string `json:"plugin_assemblies,omitempty"`
}

func (e *ExportRequestEvent) Validate() error {
	if e.WorkflowInstanceID == "" || e.ExportTaskID == "" {
		return errors.New("export request event missing required fields")
	}
	if len(e.Files) == 0 {
		return errors.New("export request event carries no files")
	}
	if len(e.Destinations) == 0 {
		return errors.New("export request event carries no destinations")
	}
	return nil
}

type ExportCompleteEvent struct {
	WorkflowInstanceID string            `json:"workflow_instance_id"`
	ExportTaskID       string            `json:"export_task_id"`
	Status             string            `json:"status"`
	FileStatuses       map[string]string `json:"file_statuses,omitempty"`
}

func (e *ExportCompleteEvent) Validate() error {
	if e.WorkflowInstanceID == "" || e.ExportTaskID == "" || e.Status == "" {
		return errors.New("export complete event missing required fields")
	}
	return nil
}

type TaskCancellationEvent struct {
	WorkflowInstanceID string `json:"workflow_instance_id"`
	TaskID             string `json:"task_id"`
	ExecutionID        string `json:"execution_id"`
	Reason             string `json:"reason"`
	Message            string `json:"message,omitempty"`
	Identity           string `json:"identity,omitempty"`
}

func (e *TaskCancellationEvent) Validate() error {
	if e.WorkflowInstanceID == "" || e.TaskID == "" || e.ExecutionID == "" {
		return errors.New("task cancellation event missing required fields")
	}
	return nil
}

type ArtifactsReceivedEvent struct {
	WorkflowInstanceID string             `json:"workflow_instance_id"`
	TaskID             string             `json:"task_id"`
	PayloadID          string             `json:"payload_id"`
	CorrelationID      string             `json:"correlation_id"`
	Artifacts          []ReceivedArtifact `json:"artifacts"`
}

type ReceivedArtifact struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

func (e *ArtifactsReceivedEvent) Validate() error {
	if e.WorkflowInstanceID == "" || e.TaskID == "" {
		return errors.New("artifacts received event missing required fields")
	}
	return nil
}

// ToBytes serializes any event for publishing.
func ToBytes(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}
