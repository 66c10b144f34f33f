package server

import (
	"medflow/app/config"
	"medflow/app/db"
	"medflow/app/events"
	"medflow/app/storage"
	"medflow/app/workflow"
	"medflow/pkg/contextx"
	"medflow/pkg/log"
	"medflow/pkg/messaging"
)

// EngineServer binds the broker subscriptions to the workflow engine
// handlers.
type EngineServer struct {
	broker *messaging.Broker
	engine *workflow.Engine
}

func NewEngineServer() *EngineServer {
	return &EngineServer{}
}

func (e *EngineServer) Initialize() error {
	database, err := db.Connect(config.Config.Database)
	if err != nil {
		return err
	}

	broker, err := messaging.NewBroker(config.Config.Messaging)
	if err != nil {
		return err
	}

	workflows := db.NewWorkflowRepository(database)
	instances := db.NewWorkflowInstanceRepository(database)
	payloads := db.NewPayloadRepository(database)
	store := storage.NewMemoryService()

	params := workflow.NewParameterResolver(workflows, payloads, store)
	artifacts := workflow.NewArtifactResolver(instances, store)

	e.broker = broker
	e.engine = workflow.NewEngine(workflows, instances, payloads, store, broker, params, artifacts,
		config.Config.Engine, config.Config.Storage)
	return nil
}

func (e *EngineServer) Start() error {
	subscriptions := map[string]messaging.Handler{
		config.WorkflowRequestTopic:  e.onWorkflowRequest,
		config.TaskUpdateTopic:       e.onTaskUpdate,
		config.ExportCompleteTopic:   e.onExportComplete,
		config.ArtifactReceivedTopic: e.onArtifactsReceived,
	}
	for topic, handler := range subscriptions {
		if err := e.broker.Subscribe(topic, "", handler); err != nil {
			return err
		}
	}
	return nil
}

func (e *EngineServer) Stop() error {
	return e.broker.Close()
}

func (e *EngineServer) onWorkflowRequest(ctx *contextx.Context, msg *messaging.Message) {
	event := &events.WorkflowRequestEvent{}
	if !decode(ctx, msg, event) {
		return
	}
	finish(ctx, msg, e.engine.ProcessWorkflowRequest(ctx, event))
}

func (e *EngineServer) onTaskUpdate(ctx *contextx.Context, msg *messaging.Message) {
	event := &events.TaskUpdateEvent{}
	if !decode(ctx, msg, event) {
		return
	}
	finish(ctx, msg, e.engine.ProcessTaskUpdate(ctx, event))
}

func (e *EngineServer) onExportComplete(ctx *contextx.Context, msg *messaging.Message) {
	event := &events.ExportCompleteEvent{}
	if !decode(ctx, msg, event) {
		return
	}
	finish(ctx, msg, e.engine.ProcessExportComplete(ctx, event, msg.CorrelationID))
}

func (e *EngineServer) onArtifactsReceived(ctx *contextx.Context, msg *messaging.Message) {
	event := &events.ArtifactsReceivedEvent{}
	if !decode(ctx, msg, event) {
		return
	}
	finish(ctx, msg, e.engine.ProcessArtifactsReceived(ctx, event))
}

type validatable interface {
	Validate() error
}

// decode unmarshals and validates the delivery. A message that cannot be
// decoded or validated is rejected without requeue, redelivery would
// never make it valid.
func decode(ctx *contextx.Context, msg *messaging.Message, event validatable) bool {
	if err := msg.Decode(event); err != nil {
		log.Errorf(ctx, "undecodable message %s on %s, error: %s", msg.MessageID, msg.Topic, err.Error())
		if rejectErr := msg.Reject(false); rejectErr != nil {
			log.Errorf(ctx, "failure rejecting message %s, error: %s", msg.MessageID, rejectErr.Error())
		}
		return false
	}
	if err := event.Validate(); err != nil {
		log.Errorf(ctx, "invalid message %s on %s, error: %s", msg.MessageID, msg.Topic, err.Error())
		if rejectErr := msg.Reject(false); rejectErr != nil {
			log.Errorf(ctx, "failure rejecting message %s, error: %s", msg.MessageID, rejectErr.Error())
		}
		return false
	}
	return true
}

// finish maps the handler outcome onto the delivery. Handler errors are
// transient by contract, the message goes back through the delay queue.
func finish(ctx *contextx.Context, msg *messaging.Message, err error) {
	if err != nil {
		log.Errorf(ctx, "failure processing message %s on %s, error: %s", msg.MessageID, msg.Topic, err.Error())
		if requeueErr := msg.RequeueWithDelay(); requeueErr != nil {
			log.Errorf(ctx, "failure requeueing message %s, error: %s", msg.MessageID, requeueErr.Error())
		}
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		log.Errorf(ctx, "failure acking message %s, error: %s", msg.MessageID, ackErr.Error())
	}
}
