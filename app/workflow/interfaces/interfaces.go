package interfaces

import (
	"medflow/app/objects"
	"medflow/pkg/contextx"
)

// WorkflowRepository serves stored workflow revisions.
type WorkflowRepository interface {
	GetByWorkflowID(ctx *contextx.Context, workflowId string) (*objects.WorkflowRevision, error)
	GetByWorkflowIDs(ctx *contextx.Context, workflowIds []string) ([]objects.WorkflowRevision, error)
	GetByAeTitle(ctx *contextx.Context, aeTitle string) ([]objects.WorkflowRevision, error)
}

// WorkflowInstanceRepository persists instances and their task lists. All
// task mutations are scoped to one instance id.
type WorkflowInstanceRepository interface {
	GetByInstanceID(ctx *contextx.Context, instanceId string) (*objects.WorkflowInstance, error)
	GetByPayloadID(ctx *contextx.Context, payloadId string) ([]objects.WorkflowInstance, error)
	Create(ctx *contextx.Context, instances []objects.WorkflowInstance) error
	UpdateInstanceStatus(ctx *contextx.Context, instanceId, status string) error
	UpdateTask(ctx *contextx.Context, instanceId string, task *objects.TaskExecution) error
	UpdateTaskStatus(ctx *contextx.Context, instanceId, taskId, status string) error
	UpdateTaskOutputArtifacts(ctx *contextx.Context, instanceId, taskId string, artifacts map[string]string) error
	UpdateTasks(ctx *contextx.Context, instanceId string, tasks []objects.TaskExecution) error
	GetTask(ctx *contextx.Context, instanceId, taskId string) (*objects.TaskExecution, error)
}

type PayloadRepository interface {
	GetByPayloadID(ctx *contextx.Context, payloadId string) (*objects.Payload, error)
	Create(ctx *contextx.Context, payload *objects.Payload) error
}

type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// StorageService is the object store surface the engine and the task
// manager need. Implementations live outside the core.
type StorageService interface {
	ListObjects(ctx *contextx.Context, bucket, prefix string, recursive bool) ([]ObjectInfo, error)
	VerifyObjectsExist(ctx *contextx.Context, bucket string, keys []string) (map[string]bool, error)
	CreateTemporaryCredentials(ctx *contextx.Context, bucket, path string, ttlSeconds int) (*Credentials, error)
	RemoveCredentials(ctx *contextx.Context, credentials Credentials) error
}

// DicomService resolves DICOM tag values across the files of a payload.
type DicomService interface {
	GetAnyValue(ctx *contextx.Context, keyId, payloadId, bucketId string) (string, error)
	GetAllValue(ctx *contextx.Context, keyId, payloadId, bucketId string) (string, error)
}

// Publisher sends an event to a topic. The body is serialized by the
// messaging layer.
type Publisher interface {
	Publish(ctx *contextx.Context, topic string, event interface{}) error
}
