package workflow

import (
	"medflow/app/objects"
	"medflow/pkg/contextx"
)

type fakeWorkflowRepository struct {
	revisions map[string]*objects.WorkflowRevision
}

func newFakeWorkflowRepository(revisions ...*objects.WorkflowRevision) *fakeWorkflowRepository {
	repo := &fakeWorkflowRepository{revisions: map[string]*objects.WorkflowRevision{}}
	for _, revision := range revisions {
		repo.revisions[revision.WorkflowID] = revision
	}
	return repo
}

func (r *fakeWorkflowRepository) GetByWorkflowID(ctx *contextx.Context, workflowId string) (*objects.WorkflowRevision, error) {
	return r.revisions[workflowId], nil
}

func (r *fakeWorkflowRepository) GetByWorkflowIDs(ctx *contextx.Context, workflowIds []string) ([]objects.WorkflowRevision, error) {
	var matched []objects.WorkflowRevision
	for _, workflowId := range workflowIds {
		if revision, ok := r.revisions[workflowId]; ok {
			matched = append(matched, *revision)
		}
	}
	return matched, nil
}

func (r *fakeWorkflowRepository) GetByAeTitle(ctx *contextx.Context, aeTitle string) ([]objects.WorkflowRevision, error) {
	var matched []objects.WorkflowRevision
	for _, revision := range r.revisions {
		if revision.Workflow.InformaticsGateway.AeTitle == aeTitle {
			matched = append(matched, *revision)
		}
	}
	return matched, nil
}

type fakeInstanceRepository struct {
	instances map[string]*objects.WorkflowInstance
}

func newFakeInstanceRepository(instances ...*objects.WorkflowInstance) *fakeInstanceRepository {
	repo := &fakeInstanceRepository{instances: map[string]*objects.WorkflowInstance{}}
	for _, instance := range instances {
		repo.instances[instance.ID] = instance
	}
	return repo
}

func (r *fakeInstanceRepository) GetByInstanceID(ctx *contextx.Context, instanceId string) (*objects.WorkflowInstance, error) {
	return r.instances[instanceId], nil
}

func (r *fakeInstanceRepository) GetByPayloadID(ctx *contextx.Context, payloadId string) ([]objects.WorkflowInstance, error) {
	var matched []objects.WorkflowInstance
	for _, instance := range r.instances {
		if instance.PayloadID == payloadId {
			matched = append(matched, *instance)
		}
	}
	return matched, nil
}

func (r *fakeInstanceRepository) Create(ctx *contextx.Context, instances []objects.WorkflowInstance) error {
	for i := range instances {
		stored := instances[i]
		r.instances[stored.ID] = &stored
	}
	return nil
}

func (r *fakeInstanceRepository) UpdateInstanceStatus(ctx *contextx.Context, instanceId, instanceStatus string) error {
	if instance, ok := r.instances[instanceId]; ok {
		instance.Status = instanceStatus
	}
	return nil
}

func (r *fakeInstanceRepository) UpdateTask(ctx *contextx.Context, instanceId string, task *objects.TaskExecution) error {
	instance, ok := r.instances[instanceId]
	if !ok {
		return nil
	}
	for i := range instance.Tasks {
		if instance.Tasks[i].TaskID == task.TaskID {
			instance.Tasks[i] = *task
		}
	}
	return nil
}

func (r *fakeInstanceRepository) UpdateTaskStatus(ctx *contextx.Context, instanceId, taskId, taskStatus string) error {
	if instance, ok := r.instances[instanceId]; ok {
		if task := instance.GetTask(taskId); task != nil {
			task.Status = taskStatus
		}
	}
	return nil
}

func (r *fakeInstanceRepository) UpdateTaskOutputArtifacts(ctx *contextx.Context, instanceId, taskId string, artifacts map[string]string) error {
	if instance, ok := r.instances[instanceId]; ok {
		if task := instance.GetTask(taskId); task != nil {
			task.OutputArtifacts = artifacts
		}
	}
	return nil
}

func (r *fakeInstanceRepository) UpdateTasks(ctx *contextx.Context, instanceId string, tasks []objects.TaskExecution) error {
	if instance, ok := r.instances[instanceId]; ok {
		instance.Tasks = tasks
	}
	return nil
}

func (r *fakeInstanceRepository) GetTask(ctx *contextx.Context, instanceId, taskId string) (*objects.TaskExecution, error) {
	instance, ok := r.instances[instanceId]
	if !ok {
		return nil, nil
	}
	return instance.GetTask(taskId), nil
}

type fakePayloadRepository struct {
	payloads map[string]*objects.Payload
}

func newFakePayloadRepository(payloads ...*objects.Payload) *fakePayloadRepository {
	repo := &fakePayloadRepository{payloads: map[string]*objects.Payload{}}
	for _, payload := range payloads {
		repo.payloads[payload.PayloadID] = payload
	}
	return repo
}

func (r *fakePayloadRepository) GetByPayloadID(ctx *contextx.Context, payloadId string) (*objects.Payload, error) {
	return r.payloads[payloadId], nil
}

func (r *fakePayloadRepository) Create(ctx *contextx.Context, payload *objects.Payload) error {
	r.payloads[payload.PayloadID] = payload
	return nil
}

type publishedEvent struct {
	topic string
	event interface{}
}

type fakePublisher struct {
	published []publishedEvent
}

func (p *fakePublisher) Publish(ctx *contextx.Context, topic string, event interface{}) error {
	p.published = append(p.published, publishedEvent{topic: topic, event: event})
	return nil
}

func (p *fakePublisher) byTopic(topic string) []interface{} {
	var matched []interface{}
	for _, entry := range p.published {
		if entry.topic == topic {
			matched = append(matched, entry.event)
		}
	}
	return matched
}
