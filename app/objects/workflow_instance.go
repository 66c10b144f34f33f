package objects

import (
	"encoding/json"
	"time"
)

type WorkflowInstance struct {
	ID                         string            `json:"id" bson:"id"`
	AeTitle                    string            `json:"ae_title" bson:"ae_title"`
	WorkflowName               string            `json:"workflow_name" bson:"workflow_name"`
	WorkflowID                 string            `json:"workflow_id" bson:"workflow_id"`
	PayloadID                  string            `json:"payload_id" bson:"payload_id"`
	StartTime                  time.Time         `json:"start_time" bson:"start_time"`
	Status                     string            `json:"status" bson:"status"`
	BucketID                   string            `json:"bucket_id" bson:"bucket_id"`
	InputMetadata              map[string]string `json:"input_metadata" bson:"input_metadata"`
	Tasks                      []TaskExecution   `json:"tasks" bson:"tasks"`
	AcknowledgedWorkflowErrors *time.Time        `json:"acknowledged_workflow_errors,omitempty" bson:"acknowledged_workflow_errors,omitempty"`
}

func (w *WorkflowInstance) GetTask(taskId string) *TaskExecution {
	for i := range w.Tasks {
		if w.Tasks[i].TaskID == taskId {
			return &w.Tasks[i]
		}
	}
	return nil
}

func (w *WorkflowInstance) GetTaskByExecution(executionId string) *TaskExecution {
	for i := range w.Tasks {
		if w.Tasks[i].ExecutionID == executionId {
			return &w.Tasks[i]
		}
	}
	return nil
}

func (w WorkflowInstance) String() string {
	data, _ := json.Marshal(&w)
	return string(data)
}
