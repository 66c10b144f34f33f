package db

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"medflow/app/objects"
	"medflow/pkg/contextx"
)

// WorkflowInstanceRepository persists instances and their embedded task
// lists. Task mutations use positional updates scoped to one instance.
type WorkflowInstanceRepository struct {
	collection *mongo.Collection
}

func NewWorkflowInstanceRepository(database *mongo.Database) *WorkflowInstanceRepository {
	return &WorkflowInstanceRepository{collection: database.Collection(instanceCollection)}
}

func (r *WorkflowInstanceRepository) GetByInstanceID(ctx *contextx.Context, instanceId string) (*objects.WorkflowInstance, error) {
	instance := &objects.WorkflowInstance{}
	err := r.collection.FindOne(ctx, bson.M{"id": instanceId}).Decode(instance)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func (r *WorkflowInstanceRepository) GetByPayloadID(ctx *contextx.Context, payloadId string) ([]objects.WorkflowInstance, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"payload_id": payloadId})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var instances []objects.WorkflowInstance
	if err := cursor.All(ctx, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *WorkflowInstanceRepository) Create(ctx *contextx.Context, instances []objects.WorkflowInstance) error {
	documents := make([]interface{}, 0, len(instances))
	for i := range instances {
		documents = append(documents, instances[i])
	}
	_, err := r.collection.InsertMany(ctx, documents)
	return err
}

func (r *WorkflowInstanceRepository) UpdateInstanceStatus(ctx *contextx.Context, instanceId, instanceStatus string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"id": instanceId},
		bson.M{"$set": bson.M{"status": instanceStatus}})
	return err
}

func (r *WorkflowInstanceRepository) UpdateTask(ctx *contextx.Context, instanceId string, task *objects.TaskExecution) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"id": instanceId, "tasks.task_id": task.TaskID},
		bson.M{"$set": bson.M{"tasks.$": task}})
	return err
}

func (r *WorkflowInstanceRepository) UpdateTaskStatus(ctx *contextx.Context, instanceId, taskId, taskStatus string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"id": instanceId, "tasks.task_id": taskId},
		bson.M{"$set": bson.M{"tasks.$.status": taskStatus}})
	return err
}

func (r *WorkflowInstanceRepository) UpdateTaskOutputArtifacts(ctx *contextx.Context, instanceId, taskId string, artifacts map[string]string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"id": instanceId, "tasks.task_id": taskId},
		bson.M{"$set": bson.M{"tasks.$.output_artifacts": artifacts}})
	return err
}

func (r *WorkflowInstanceRepository) UpdateTasks(ctx *contextx.Context, instanceId string, tasks []objects.TaskExecution) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"id": instanceId},
		bson.M{"$set": bson.M{"tasks": tasks}})
	return err
}

func (r *WorkflowInstanceRepository) GetTask(ctx *contextx.Context, instanceId, taskId string) (*objects.TaskExecution, error) {
	instance, err := r.GetByInstanceID(ctx, instanceId)
	if err != nil || instance == nil {
		return nil, err
	}
	return instance.GetTask(taskId), nil
}
