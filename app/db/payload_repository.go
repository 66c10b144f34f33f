package db

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"medflow/app/objects"
	"medflow/pkg/contextx"
)

type PayloadRepository struct {
	collection *mongo.Collection
}

func NewPayloadRepository(database *mongo.Database) *PayloadRepository {
	return &PayloadRepository{collection: database.Collection(payloadCollection)}
}

func (r *PayloadRepository) GetByPayloadID(ctx *contextx.Context, payloadId string) (*objects.Payload, error) {
	payload := &objects.Payload{}
	err := r.collection.FindOne(ctx, bson.M{"payload_id": payloadId}).Decode(payload)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *PayloadRepository) Create(ctx *contextx.Context, payload *objects.Payload) error {
	_, err := r.collection.InsertOne(ctx, payload)
	return err
}
