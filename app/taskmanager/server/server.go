package server

import (
	"medflow/app/config"
	"medflow/app/storage"
	"medflow/app/taskmanager"
	"medflow/pkg/contextx"
	"medflow/pkg/messaging"
	"medflow/plugins"
)

// TaskManagerServer feeds dispatch, callback and cancellation messages
// into the manager. The manager acks or requeues each delivery itself.
type TaskManagerServer struct {
	broker  *messaging.Broker
	manager *taskmanager.Manager
}

func NewTaskManagerServer() *TaskManagerServer {
	return &TaskManagerServer{}
}

func (s *TaskManagerServer) Initialize() error {
	broker, err := messaging.NewBroker(config.Config.Messaging)
	if err != nil {
		return err
	}

	registry := taskmanager.NewRegistry()
	plugins.RegisterAll(registry, broker)

	s.broker = broker
	s.manager = taskmanager.NewManager(config.Config.TaskManager, registry, storage.NewMemoryService(), broker)
	return nil
}

func (s *TaskManagerServer) Start() error {
	subscriptions := map[string]messaging.Handler{
		config.TaskDispatchTopic: func(ctx *contextx.Context, msg *messaging.Message) {
			s.manager.HandleDispatch(ctx, msg)
		},
		config.TaskCallbackTopic: func(ctx *contextx.Context, msg *messaging.Message) {
			s.manager.HandleCallback(ctx, msg)
		},
		config.TaskCancellationTopic: func(ctx *contextx.Context, msg *messaging.Message) {
			s.manager.HandleCancellation(ctx, msg)
		},
	}
	for topic, handler := range subscriptions {
		if err := s.broker.Subscribe(topic, "", handler); err != nil {
			return err
		}
	}
	return nil
}

func (s *TaskManagerServer) Stop() error {
	return s.broker.Close()
}
