package taskmanager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"medflow/app/config"
	"medflow/app/events"
	"medflow/app/objects"
	"medflow/app/workflow/interfaces"
	"medflow/app/workflow/status"
	"medflow/pkg/contextx"
	"medflow/pkg/log"
)

// BrokerMessage is the slice of the messaging layer the manager needs to
// finish a delivery.
type BrokerMessage interface {
	Decode(v interface{}) error
	Ack() error
	Reject(requeue bool) error
	RequeueWithDelay() error
}

// Manager runs the dispatch/callback/cancellation loop. Admission is a
// shared atomic counter: a job reserved at dispatch stays counted until
// its callback arrives, so "in flight" spans both messages.
type Manager struct {
	cfg       config.TaskManagerConfig
	registry  *Registry
	storage   interfaces.StorageService
	publisher interfaces.Publisher

	activeJobs int64

	mu       sync.Mutex
	inFlight map[string]*dispatchInfo
}

type dispatchInfo struct {
	event       *events.TaskDispatchEvent
	credentials []interfaces.Credentials
}

func NewManager(cfg config.TaskManagerConfig, registry *Registry, storage interfaces.StorageService, publisher interfaces.Publisher) *Manager {
	return &Manager{
		cfg:       cfg,
		registry:  registry,
		storage:   storage,
		publisher: publisher,
		inFlight:  map[string]*dispatchInfo{},
	}
}

func (m *Manager) ActiveJobs() int64 {
	return atomic.LoadInt64(&m.activeJobs)
}

// HandleDispatch admits, prepares and executes one dispatched task. At
// capacity the message is requeued with delay instead of processed.
func (m *Manager) HandleDispatch(ctx *contextx.Context, msg BrokerMessage) {
	event := &events.TaskDispatchEvent{}
	if err := msg.Decode(event); err != nil {
		log.Errorf(ctx, "undecodable dispatch message, error: %s", err.Error())
		m.finish(ctx, msg.Reject(false))
		return
	}

	if err := event.Validate(); err != nil {
		log.Errorf(ctx, "invalid dispatch message, error: %s", err.Error())
		m.failTask(ctx, event, objects.ReasonInvalidMessage, err.Error())
		m.finish(ctx, msg.Reject(false))
		return
	}

	if !m.tryReserve() {
		log.Warnf(ctx, "no resource available for execution, requeueing task %s", event.TaskID)
		m.finish(ctx, msg.RequeueWithDelay())
		return
	}

	info := &dispatchInfo{event: event}
	m.track(info)

	if err := m.attachCredentials(ctx, info); err != nil {
		log.Errorf(ctx, "failure generating storage credentials, error: %s", err.Error())
		m.release()
		m.failTask(ctx, event, objects.ReasonExternalServiceError, err.Error())
		m.finish(ctx, msg.RequeueWithDelay())
		return
	}

	factory, err := m.registry.Resolve(event.Type)
	if err != nil {
		log.Errorf(ctx, "unsupported runner %q, error: %s", event.Type, err.Error())
		m.release()
		m.failTask(ctx, event, objects.ReasonRunnerNotSupported, err.Error())
		m.finish(ctx, msg.Reject(false))
		return
	}

	plugin, err := factory(event, m.storage)
	if err != nil {
		log.Errorf(ctx, "failure building runner %q, error: %s", event.Type, err.Error())
		m.release()
		m.failTask(ctx, event, objects.ReasonRunnerNotSupported, err.Error())
		m.finish(ctx, msg.Reject(false))
		return
	}
	defer m.cleanup(ctx, plugin)

	result, err := plugin.ExecuteTask(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// in-flight cancellation is transient, try again later
			log.Warnf(ctx, "task %s execution canceled, requeueing", event.TaskID)
			m.release()
			m.finish(ctx, msg.RequeueWithDelay())
			return
		}
		log.Errorf(ctx, "failure executing task %s, error: %s", event.TaskID, err.Error())
		m.release()
		m.failTask(ctx, event, objects.ReasonPluginError, err.Error())
		m.finish(ctx, msg.Reject(false))
		return
	}

	m.publishUpdate(ctx, event, result, nil, nil)
	m.finish(ctx, msg.Ack())
}

// HandleCallback reports a running job's status and frees its admission
// slot and credentials.
func (m *Manager) HandleCallback(ctx *contextx.Context, msg BrokerMessage) {
	event := &events.TaskCallbackEvent{}
	if err := msg.Decode(event); err != nil {
		log.Errorf(ctx, "undecodable callback message, error: %s", err.Error())
		m.finish(ctx, msg.Reject(false))
		return
	}

	if err := event.Validate(); err != nil {
		log.Errorf(ctx, "invalid callback message, error: %s", err.Error())
		m.failCallback(ctx, event, objects.ReasonInvalidMessage, err.Error())
		m.finish(ctx, msg.Reject(false))
		return
	}

	info := m.lookup(event.ExecutionID)
	if info == nil {
		log.Errorf(ctx, "no active executor with execution id %s", event.ExecutionID)
		m.failCallback(ctx, event, objects.ReasonInvalidMessage, "no matching executor id")
		m.finish(ctx, msg.Reject(false))
		return
	}

	factory, err := m.registry.Resolve(info.event.Type)
	if err != nil {
		log.Errorf(ctx, "unsupported runner %q, error: %s", info.event.Type, err.Error())
		m.failCallback(ctx, event, objects.ReasonRunnerNotSupported, err.Error())
		m.finish(ctx, msg.Reject(false))
		return
	}
	plugin, err := factory(info.event, m.storage)
	if err != nil {
		log.Errorf(ctx, "failure building runner %q, error: %s", info.event.Type, err.Error())
		m.failCallback(ctx, event, objects.ReasonRunnerNotSupported, err.Error())
		m.finish(ctx, msg.Reject(false))
		return
	}
	defer m.cleanup(ctx, plugin)

	result, err := plugin.GetStatus(ctx, event.Identity, event)
	if err != nil {
		log.Errorf(ctx, "failure getting status of job %s, error: %s", event.Identity, err.Error())
		m.failCallback(ctx, event, objects.ReasonPluginError, err.Error())
		m.finish(ctx, msg.Reject(false))
		return
	}

	metadata := map[string]interface{}{"job_identity": event.Identity}
	for k, v := range event.Metadata {
		metadata[k] = v
	}

	m.finish(ctx, msg.Ack())
	m.publishUpdate(ctx, info.event, result, info.event.Outputs, metadata)

	m.release()
	m.removeCredentials(ctx, info)
	m.untrack(event.ExecutionID)
}

// HandleCancellation invokes the plugin's timeout handler. The message
// is acknowledged regardless of outcome.
func (m *Manager) HandleCancellation(ctx *contextx.Context, msg BrokerMessage) {
	defer func() {
		m.finish(ctx, msg.Ack())
	}()

	event := &events.TaskCancellationEvent{}
	if err := msg.Decode(event); err != nil {
		log.Errorf(ctx, "undecodable cancellation message, error: %s", err.Error())
		return
	}
	if err := event.Validate(); err != nil {
		log.Errorf(ctx, "invalid cancellation message, error: %s", err.Error())
		return
	}

	info := m.lookup(event.ExecutionID)
	if info == nil {
		log.Warnf(ctx, "no active executor with execution id %s", event.ExecutionID)
		return
	}

	factory, err := m.registry.Resolve(info.event.Type)
	if err != nil {
		log.Errorf(ctx, "unsupported runner %q, error: %s", info.event.Type, err.Error())
		return
	}
	plugin, err := factory(info.event, m.storage)
	if err != nil {
		log.Errorf(ctx, "failure building runner %q, error: %s", info.event.Type, err.Error())
		return
	}
	defer m.cleanup(ctx, plugin)

	if err := plugin.HandleTimeout(ctx, event.Identity); err != nil {
		log.Errorf(ctx, "failure handling timeout of job %s, error: %s", event.Identity, err.Error())
	}
}

func (m *Manager) tryReserve() bool {
	for {
		active := atomic.LoadInt64(&m.activeJobs)
		if active >= int64(m.cfg.MaximumNumberOfConcurrentJobs) {
			return false
		}
		if atomic.CompareAndSwapInt64(&m.activeJobs, active, active+1) {
			return true
		}
	}
}

func (m *Manager) release() {
	atomic.AddInt64(&m.activeJobs, -1)
}

func (m *Manager) track(info *dispatchInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight[info.event.ExecutionID] = info
}

func (m *Manager) untrack(executionId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, executionId)
}

func (m *Manager) lookup(executionId string) *dispatchInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight[executionId]
}

// attachCredentials mints storage credentials for every storage entry of
// the event. Plugins on the permanent account list get non-expiring
// credentials, everything else gets per-job temporary ones.
func (m *Manager) attachCredentials(ctx *contextx.Context, info *dispatchInfo) error {
	ttl := m.cfg.TemporaryCredentialTTL
	for _, pluginType := range m.cfg.PermanentAccountPlugins {
		if pluginType == info.event.Type {
			ttl = 0
		}
	}

	storages := make([]*events.Storage, 0, len(info.event.Inputs)+len(info.event.Outputs)+1)
	for i := range info.event.Inputs {
		storages = append(storages, &info.event.Inputs[i])
	}
	for i := range info.event.Outputs {
		storages = append(storages, &info.event.Outputs[i])
	}
	if info.event.IntermediateStorage != nil {
		storages = append(storages, info.event.IntermediateStorage)
	}

	for _, entry := range storages {
		credentials, err := m.storage.CreateTemporaryCredentials(ctx, entry.Bucket, entry.RelativeRootPath, ttl)
		if err != nil {
			return err
		}
		entry.Credentials = &events.Credentials{
			AccessKey:    credentials.AccessKeyID,
			AccessToken:  credentials.SecretAccessKey,
			SessionToken: credentials.SessionToken,
		}
		info.credentials = append(info.credentials, *credentials)
	}
	return nil
}

func (m *Manager) removeCredentials(ctx *contextx.Context, info *dispatchInfo) {
	for _, credentials := range info.credentials {
		if err := m.storage.RemoveCredentials(ctx, credentials); err != nil {
			log.Errorf(ctx, "failure removing storage credentials, error: %s", err.Error())
		}
	}
}

func (m *Manager) publishUpdate(ctx *contextx.Context, event *events.TaskDispatchEvent, result *ExecutionStatus, outputs []events.Storage, metadata map[string]interface{}) {
	update := &events.TaskUpdateEvent{
		WorkflowInstanceID: event.WorkflowInstanceID,
		TaskID:             event.TaskID,
		ExecutionID:        event.ExecutionID,
		CorrelationID:      event.CorrelationID,
		Status:             result.Status,
		Reason:             result.FailureReason,
		Message:            result.Errors,
		Outputs:            outputs,
		Metadata:           metadata,
		ExecutionStats:     result.Stats,
	}
	if err := m.publisher.Publish(ctx, config.TaskUpdateTopic, update); err != nil {
		log.Errorf(ctx, "failure publishing task update for task %s, error: %s", event.TaskID, err.Error())
	}
}

func (m *Manager) failTask(ctx *contextx.Context, event *events.TaskDispatchEvent, reason, message string) {
	m.publishUpdate(ctx, event, &ExecutionStatus{
		Status:        status.FAILED,
		FailureReason: reason,
		Errors:        message,
	}, nil, nil)
}

func (m *Manager) failCallback(ctx *contextx.Context, event *events.TaskCallbackEvent, reason, message string) {
	update := &events.TaskUpdateEvent{
		WorkflowInstanceID: event.WorkflowInstanceID,
		TaskID:             event.TaskID,
		ExecutionID:        event.ExecutionID,
		CorrelationID:      event.CorrelationID,
		Status:             status.FAILED,
		Reason:             reason,
		Message:            message,
	}
	if err := m.publisher.Publish(ctx, config.TaskUpdateTopic, update); err != nil {
		log.Errorf(ctx, "failure publishing task update for task %s, error: %s", event.TaskID, err.Error())
	}
}

func (m *Manager) cleanup(ctx *contextx.Context, plugin TaskPlugin) {
	if err := plugin.Cleanup(ctx); err != nil {
		log.Errorf(ctx, "failure cleaning up runner, error: %s", err.Error())
	}
}

func (m *Manager) finish(ctx *contextx.Context, err error) {
	if err != nil {
		log.Errorf(ctx, "failure finishing message, error: %s", err.Error())
	}
}
