package db

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medflow/app/objects"
	"medflow/pkg/contextx"
)

// WorkflowRepository serves workflow revisions. Reads always return the
// latest non-deleted revision of each workflow.
type WorkflowRepository struct {
	collection *mongo.Collection
}

func NewWorkflowRepository(database *mongo.Database) *WorkflowRepository {
	return &WorkflowRepository{collection: database.Collection(workflowCollection)}
}

func (r *WorkflowRepository) GetByWorkflowID(ctx *contextx.Context, workflowId string) (*objects.WorkflowRevision, error) {
	filter := bson.M{"workflow_id": workflowId, "deleted": 0}
	opts := options.FindOne().SetSort(bson.M{"revision": -1})

	revision := &objects.WorkflowRevision{}
	err := r.collection.FindOne(ctx, filter, opts).Decode(revision)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return revision, nil
}

func (r *WorkflowRepository) GetByWorkflowIDs(ctx *contextx.Context, workflowIds []string) ([]objects.WorkflowRevision, error) {
	filter := bson.M{"workflow_id": bson.M{"$in": workflowIds}, "deleted": 0}
	return r.findLatest(ctx, filter)
}

func (r *WorkflowRepository) GetByAeTitle(ctx *contextx.Context, aeTitle string) ([]objects.WorkflowRevision, error) {
	filter := bson.M{"workflow.informatics_gateway.ae_title": aeTitle, "deleted": 0}
	return r.findLatest(ctx, filter)
}

// List returns the latest non-deleted revision of every workflow.
func (r *WorkflowRepository) List(ctx *contextx.Context) ([]objects.WorkflowRevision, error) {
	return r.findLatest(ctx, bson.M{"deleted": 0})
}

func (r *WorkflowRepository) Create(ctx *contextx.Context, revision *objects.WorkflowRevision) error {
	_, err := r.collection.InsertOne(ctx, revision)
	return err
}

// SoftDelete stamps every revision of the workflow so reads stop
// returning it. The documents stay behind for audit.
func (r *WorkflowRepository) SoftDelete(ctx *contextx.Context, workflowId string) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"workflow_id": workflowId, "deleted": 0},
		bson.M{"$set": bson.M{"deleted": time.Now().Unix()}})
	return err
}

// findLatest keeps only the highest revision per workflow id.
func (r *WorkflowRepository) findLatest(ctx *contextx.Context, filter bson.M) ([]objects.WorkflowRevision, error) {
	opts := options.Find().SetSort(bson.M{"revision": -1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var all []objects.WorkflowRevision
	if err := cursor.All(ctx, &all); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var latest []objects.WorkflowRevision
	for i := range all {
		if seen[all[i].WorkflowID] {
			continue
		}
		seen[all[i].WorkflowID] = true
		latest = append(latest, all[i])
	}
	return latest, nil
}
