package taskmanager

import (
	"fmt"
	"sync"

	"medflow/app/events"
	"medflow/app/workflow/interfaces"
	"medflow/pkg/contextx"
)

// ExecutionStatus is what a plugin reports back about a job.
type ExecutionStatus struct {
	Status        string
	FailureReason string
	Stats         map[string]string
	Errors        string
}

// TaskPlugin is one execution backend. A plugin instance is created per
// dispatch or callback message and cleaned up after use.
type TaskPlugin interface {
	ExecuteTask(ctx *contextx.Context) (*ExecutionStatus, error)
	GetStatus(ctx *contextx.Context, identity string, callback *events.TaskCallbackEvent) (*ExecutionStatus, error)
	HandleTimeout(ctx *contextx.Context, identity string) error
	Cleanup(ctx *contextx.Context) error
}

// PluginFactory builds a plugin instance for one dispatch event.
type PluginFactory func(event *events.TaskDispatchEvent, storage interfaces.StorageService) (TaskPlugin, error)

// Registry maps task types to plugin factories. Factories are registered
// at startup; lookups by unknown type fail the message.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]PluginFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]PluginFactory{}}
}

func (r *Registry) Register(taskType string, factory PluginFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[taskType] = factory
}

func (r *Registry) Resolve(taskType string) (PluginFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[taskType]
	if !ok {
		return nil, fmt.Errorf("no runner registered for task type %q", taskType)
	}
	return factory, nil
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for taskType := range r.factories {
		types = append(types, taskType)
	}
	return types
}
