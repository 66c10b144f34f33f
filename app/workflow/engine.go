package workflow

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"medflow/app/conditions"
	"medflow/app/config"
	"medflow/app/events"
	"medflow/app/objects"
	"medflow/app/workflow/interfaces"
	"medflow/app/workflow/status"
	"medflow/pkg/contextx"
	"medflow/pkg/log"
)

// Engine owns the task lifecycle. Every inbound event mutates persisted
// instance state through the repositories and decides what gets
// dispatched next. Handlers run per message and do not parallelize
// internally.
type Engine struct {
	workflows interfaces.WorkflowRepository
	instances interfaces.WorkflowInstanceRepository
	payloads  interfaces.PayloadRepository
	storage   interfaces.StorageService
	publisher interfaces.Publisher
	params    *ParameterResolver
	artifacts *ArtifactResolver

	engineCfg  config.EngineConfig
	storageCfg config.StorageConfig

	mu sync.Mutex
	// received accumulates artifact paths per instanceId/taskId until all
	// mandatory outputs have arrived
	received map[string]map[string]string
}

func NewEngine(
	workflows interfaces.WorkflowRepository,
	instances interfaces.WorkflowInstanceRepository,
	payloads interfaces.PayloadRepository,
	storage interfaces.StorageService,
	publisher interfaces.Publisher,
	params *ParameterResolver,
	artifacts *ArtifactResolver,
	engineCfg config.EngineConfig,
	storageCfg config.StorageConfig,
) *Engine {
	return &Engine{
		workflows:  workflows,
		instances:  instances,
		payloads:   payloads,
		storage:    storage,
		publisher:  publisher,
		params:     params,
		artifacts:  artifacts,
		engineCfg:  engineCfg,
		storageCfg: storageCfg,
		received:   map[string]map[string]string{},
	}
}

// ProcessWorkflowRequest creates one workflow instance per matched
// revision not already instantiated for this payload and kicks off the
// first task of each.
func (e *Engine) ProcessWorkflowRequest(ctx *contextx.Context, msg *events.WorkflowRequestEvent) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	revisions, err := e.matchWorkflows(ctx, msg)
	if err != nil {
		return err
	}
	if len(revisions) == 0 {
		log.Infof(ctx, "no matching workflows found for payload %s", msg.PayloadID)
		return nil
	}

	if err := e.ensurePayload(ctx, msg); err != nil {
		return err
	}

	existing, err := e.instances.GetByPayloadID(ctx, msg.PayloadID)
	if err != nil {
		return err
	}

	newInstances := make([]objects.WorkflowInstance, 0, len(revisions))
	for i := range revisions {
		if instanceExists(existing, revisions[i].WorkflowID) {
			continue
		}
		newInstances = append(newInstances, e.createWorkflowInstance(ctx, msg, &revisions[i]))
	}

	if len(newInstances) > 0 {
		if err := e.instances.Create(ctx, newInstances); err != nil {
			return err
		}
	}

	for i := range newInstances {
		e.processFirstTask(ctx, &newInstances[i], msg.CorrelationID)
	}
	for i := range existing {
		e.processFirstTask(ctx, &existing[i], msg.CorrelationID)
	}
	return nil
}

func (e *Engine) matchWorkflows(ctx *contextx.Context, msg *events.WorkflowRequestEvent) ([]objects.WorkflowRevision, error) {
	if len(msg.Workflows) > 0 {
		return e.workflows.GetByWorkflowIDs(ctx, msg.Workflows)
	}

	var revisions []objects.WorkflowRevision
	for _, aeTitle := range []string{msg.CalledAeTitle, msg.CallingAeTitle} {
		if aeTitle == "" {
			continue
		}
		matched, err := e.workflows.GetByAeTitle(ctx, aeTitle)
		if err != nil {
			return nil, err
		}
		for i := range matched {
			if !revisionListed(revisions, matched[i].WorkflowID) {
				revisions = append(revisions, matched[i])
			}
		}
	}
	return revisions, nil
}

func (e *Engine) ensurePayload(ctx *contextx.Context, msg *events.WorkflowRequestEvent) error {
	payload, err := e.payloads.GetByPayloadID(ctx, msg.PayloadID)
	if err != nil {
		return err
	}
	if payload != nil {
		return nil
	}
	return e.payloads.Create(ctx, &objects.Payload{
		ID:             uuid.NewString(),
		PayloadID:      msg.PayloadID,
		Bucket:         msg.Bucket,
		CalledAeTitle:  msg.CalledAeTitle,
		CallingAeTitle: msg.CallingAeTitle,
		Timestamp:      msg.Timestamp,
		FileCount:      msg.FileCount,
	})
}

func (e *Engine) createWorkflowInstance(ctx *contextx.Context, msg *events.WorkflowRequestEvent, revision *objects.WorkflowRevision) objects.WorkflowInstance {
	instance := objects.WorkflowInstance{
		ID:           uuid.NewString(),
		AeTitle:      revision.Workflow.InformaticsGateway.AeTitle,
		WorkflowName: revision.Workflow.Name,
		WorkflowID:   revision.WorkflowID,
		PayloadID:    msg.PayloadID,
		StartTime:    time.Now().UTC(),
		Status:       status.InstanceCreated,
		BucketID:     msg.Bucket,
	}

	if len(revision.Workflow.Tasks) == 0 {
		return instance
	}

	firstTask := e.CreateTaskExecution(ctx, &revision.Workflow.Tasks[0], &instance, msg.Bucket, msg.PayloadID, "")
	if status.IsFailed(firstTask.Status) {
		instance.Status = status.InstanceFailed
	}
	instance.Tasks = []objects.TaskExecution{*firstTask}
	return instance
}

func (e *Engine) processFirstTask(ctx *contextx.Context, instance *objects.WorkflowInstance, correlationId string) {
	if instance.Status == status.InstanceFailed {
		log.Warnf(ctx, "workflow instance %s in status %s, skipping first task", instance.ID, instance.Status)
		return
	}
	if len(instance.Tasks) == 0 {
		return
	}
	task := &instance.Tasks[0]

	revision, err := e.workflows.GetByWorkflowID(ctx, instance.WorkflowID)
	if err != nil || revision == nil {
		log.Errorf(ctx, "workflow %s not found for instance %s", instance.WorkflowID, instance.ID)
		return
	}

	switch {
	case strings.EqualFold(task.TaskType, objects.RouterTaskType):
		e.handleTaskDestinations(ctx, instance, revision, task, correlationId)
	case strings.EqualFold(task.TaskType, objects.ExportTaskType):
		e.handleExport(ctx, revision, instance, task, correlationId, false)
	case strings.EqualFold(task.TaskType, objects.ExternalAppTaskType):
		e.handleExport(ctx, revision, instance, task, correlationId, true)
	case !status.IsCreated(task.Status):
		// a redelivered request must not dispatch the task twice
		log.Infof(ctx, "task %s of payload %s previously dispatched", task.TaskID, instance.PayloadID)
	default:
		e.dispatchTask(ctx, instance, revision, task, correlationId)
	}
}

// ProcessTaskUpdate applies one status update. Updates that violate the
// transition table are logged and dropped so a later valid update can
// still land.
func (e *Engine) ProcessTaskUpdate(ctx *contextx.Context, msg *events.TaskUpdateEvent) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	instance, err := e.instances.GetByInstanceID(ctx, msg.WorkflowInstanceID)
	if err != nil {
		return err
	}
	if instance == nil {
		log.Errorf(ctx, "workflow instance %s not found", msg.WorkflowInstanceID)
		return nil
	}

	currentTask := instance.GetTask(msg.TaskID)
	if currentTask == nil {
		log.Errorf(ctx, "task %s not found in workflow instance %s", msg.TaskID, msg.WorkflowInstanceID)
		return nil
	}

	if msg.Reason == objects.ReasonTimedOut && status.IsFailed(currentTask.Status) {
		// the review session may still be open, tell it to stop
		log.Warnf(ctx, "task %s in instance %s timed out at %s", msg.TaskID, msg.WorkflowInstanceID, currentTask.Timeout())
		cancellation := NewTaskCancellationEvent(currentTask, instance.ID, objects.ReasonTimedOut, msg.Message)
		if err := e.publisher.Publish(ctx, config.TaskCancellationTopic, cancellation); err != nil {
			log.Errorf(ctx, "failure publishing cancellation for task %s, error: %s", msg.TaskID, err.Error())
		}
		return nil
	}

	revision, err := e.workflows.GetByWorkflowID(ctx, instance.WorkflowID)
	if err != nil {
		return err
	}
	if revision == nil {
		log.Errorf(ctx, "workflow %s not found", instance.WorkflowID)
		return nil
	}

	if !status.IsValidTransition(currentTask.Status, msg.Status) {
		log.Warnf(ctx, "invalid status update for task %s of payload %s: %s to %s",
			msg.TaskID, instance.PayloadID, currentTask.Status, msg.Status)
		return nil
	}

	if msg.Reason != "" && msg.Reason != objects.ReasonNone {
		if len(msg.ExecutionStats) > 0 {
			if currentTask.ExecutionStats == nil {
				currentTask.ExecutionStats = map[string]string{}
			}
			for k, v := range msg.ExecutionStats {
				currentTask.ExecutionStats[k] = v
			}
		}
		currentTask.Reason = msg.Reason
		if err := e.instances.UpdateTask(ctx, instance.ID, currentTask); err != nil {
			return err
		}
	}

	previouslyFailed := instance.Status == status.InstanceFailed
	for i := range instance.Tasks {
		if instance.Tasks[i].TaskID != msg.TaskID && status.IsFailed(instance.Tasks[i].Status) {
			previouslyFailed = true
		}
	}

	if status.IsFailed(msg.Status) || status.IsCanceled(msg.Status) || previouslyFailed {
		if err := e.updateInstanceStatus(ctx, instance, msg.TaskID, msg.Status); err != nil {
			return err
		}
		return e.completeTask(ctx, currentTask, instance, msg.Status)
	}

	if !status.IsSucceeded(msg.Status) {
		return e.instances.UpdateTaskStatus(ctx, instance.ID, msg.TaskID, msg.Status)
	}

	if len(msg.Metadata) > 0 {
		currentTask.ResultMetadata = msg.Metadata
		if err := e.instances.UpdateTask(ctx, instance.ID, currentTask); err != nil {
			return err
		}
	}

	if !e.handleOutputArtifacts(ctx, instance, msg.Outputs, currentTask, revision) {
		if err := e.updateInstanceStatus(ctx, instance, msg.TaskID, status.FAILED); err != nil {
			return err
		}
		return e.completeTask(ctx, currentTask, instance, status.FAILED)
	}

	return e.handleTaskDestinations(ctx, instance, revision, currentTask, msg.CorrelationID)
}

// ProcessExportComplete continues or fails an export task based on the
// gateway's reported outcome.
func (e *Engine) ProcessExportComplete(ctx *contextx.Context, msg *events.ExportCompleteEvent, correlationId string) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	instance, err := e.instances.GetByInstanceID(ctx, msg.WorkflowInstanceID)
	if err != nil {
		return err
	}
	if instance == nil {
		log.Errorf(ctx, "workflow instance %s not found", msg.WorkflowInstanceID)
		return nil
	}

	task := instance.GetTask(msg.ExportTaskID)
	if task == nil {
		log.Errorf(ctx, "export task %s not found in workflow instance %s", msg.ExportTaskID, msg.WorkflowInstanceID)
		return nil
	}

	if len(msg.FileStatuses) > 0 {
		if task.ResultMetadata == nil {
			task.ResultMetadata = map[string]interface{}{}
		}
		for file, fileStatus := range msg.FileStatuses {
			task.ResultMetadata[file] = fileStatus
		}
		if err := e.instances.UpdateTask(ctx, instance.ID, task); err != nil {
			return err
		}
	}

	if msg.Status == events.ExportStatusSuccess && status.IsValidTransition(task.Status, status.SUCCEEDED) {
		revision, err := e.workflows.GetByWorkflowID(ctx, instance.WorkflowID)
		if err != nil {
			return err
		}
		if revision == nil {
			log.Errorf(ctx, "workflow %s not found", instance.WorkflowID)
			return nil
		}
		return e.handleTaskDestinations(ctx, instance, revision, task, correlationId)
	}

	if (msg.Status == events.ExportStatusFailure || msg.Status == events.ExportStatusPartialFailure) &&
		status.IsValidTransition(task.Status, status.FAILED) {
		if err := e.updateInstanceStatus(ctx, instance, task.TaskID, status.FAILED); err != nil {
			return err
		}
		return e.completeTask(ctx, task, instance, status.FAILED)
	}

	return nil
}

// ProcessArtifactsReceived accumulates incoming artifacts for a task and
// moves the task to Succeeded once every mandatory output has arrived.
func (e *Engine) ProcessArtifactsReceived(ctx *contextx.Context, msg *events.ArtifactsReceivedEvent) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	instance, err := e.instances.GetByInstanceID(ctx, msg.WorkflowInstanceID)
	if err != nil {
		return err
	}
	if instance == nil {
		log.Errorf(ctx, "workflow instance %s not found", msg.WorkflowInstanceID)
		return nil
	}
	task := instance.GetTask(msg.TaskID)
	if task == nil {
		log.Errorf(ctx, "task %s not found in workflow instance %s", msg.TaskID, msg.WorkflowInstanceID)
		return nil
	}

	revision, err := e.workflows.GetByWorkflowID(ctx, instance.WorkflowID)
	if err != nil {
		return err
	}
	if revision == nil {
		log.Errorf(ctx, "workflow %s not found", instance.WorkflowID)
		return nil
	}
	template := revision.Workflow.GetTask(msg.TaskID)
	if template == nil {
		log.Errorf(ctx, "task %s not found in workflow %s", msg.TaskID, instance.WorkflowID)
		return nil
	}

	received := e.accumulate(msg)

	var missing []string
	for _, artifact := range template.Artifacts.Output {
		if _, ok := received[artifact.Name]; !ok && artifact.IsMandatory() {
			missing = append(missing, artifact.Name)
		}
	}
	for name := range received {
		if !outputDeclared(template.Artifacts.Output, name) {
			log.Warnf(ctx, "received undeclared artifact %q for task %s", name, msg.TaskID)
		}
	}

	if len(missing) > 0 {
		log.Infof(ctx, "task %s still waiting for artifacts: %s", msg.TaskID, strings.Join(missing, ", "))
		return nil
	}

	outputs := map[string]string{}
	for _, artifact := range template.Artifacts.Output {
		if path, ok := received[artifact.Name]; ok {
			outputs[artifact.Name] = path
		}
	}
	task.OutputArtifacts = outputs
	if err := e.instances.UpdateTaskOutputArtifacts(ctx, instance.ID, msg.TaskID, outputs); err != nil {
		return err
	}

	if !status.IsValidTransition(task.Status, status.SUCCEEDED) {
		log.Warnf(ctx, "invalid status update for task %s: %s to %s", msg.TaskID, task.Status, status.SUCCEEDED)
		return nil
	}
	if err := e.instances.UpdateTaskStatus(ctx, instance.ID, msg.TaskID, status.SUCCEEDED); err != nil {
		return err
	}
	task.Status = status.SUCCEEDED
	e.discardReceived(msg.WorkflowInstanceID, msg.TaskID)

	return e.handleTaskDestinations(ctx, instance, revision, task, msg.CorrelationID)
}

func (e *Engine) accumulate(msg *events.ArtifactsReceivedEvent) map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := msg.WorkflowInstanceID + "/" + msg.TaskID
	if e.received[key] == nil {
		e.received[key] = map[string]string{}
	}
	for _, artifact := range msg.Artifacts {
		e.received[key][artifact.Type] = artifact.Path
	}

	snapshot := map[string]string{}
	for k, v := range e.received[key] {
		snapshot[k] = v
	}
	return snapshot
}

func (e *Engine) discardReceived(instanceId, taskId string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.received, instanceId+"/"+taskId)
}

func outputDeclared(outputs []objects.Artifact, name string) bool {
	for _, artifact := range outputs {
		if artifact.Name == name {
			return true
		}
	}
	return false
}

// handleOutputArtifacts verifies the declared outputs of a finished task
// against object storage. Missing mandatory outputs fail the task.
func (e *Engine) handleOutputArtifacts(ctx *contextx.Context, instance *objects.WorkflowInstance, outputs []events.Storage, task *objects.TaskExecution, revision *objects.WorkflowRevision) bool {
	template := revision.Workflow.GetTask(task.TaskID)
	if template == nil {
		log.Errorf(ctx, "task %s of payload %s not found in workflow %s", task.TaskID, instance.PayloadID, revision.WorkflowID)
		return false
	}

	reported := map[string]string{}
	paths := make([]string, 0, len(outputs))
	for _, output := range outputs {
		reported[output.Name] = output.RelativeRootPath
		paths = append(paths, output.RelativeRootPath)
	}

	var existing map[string]bool
	if len(paths) > 0 {
		var err error
		existing, err = e.storage.VerifyObjectsExist(ctx, instance.BucketID, paths)
		if err != nil {
			log.Errorf(ctx, "failure verifying output artifacts of task %s, error: %s", task.TaskID, err.Error())
			return false
		}
	}

	valid := map[string]string{}
	for name, path := range reported {
		if existing[path] {
			valid[name] = path
		}
	}

	for _, output := range template.Artifacts.Output {
		if _, ok := valid[output.Name]; !ok && output.IsMandatory() {
			log.Errorf(ctx, "mandatory output artifact %q missing for task %s", output.Name, task.TaskID)
			return false
		}
	}

	task.OutputArtifacts = valid
	if len(valid) > 0 {
		if err := e.instances.UpdateTaskOutputArtifacts(ctx, instance.ID, task.TaskID, valid); err != nil {
			log.Errorf(ctx, "failure persisting output artifacts of task %s, error: %s", task.TaskID, err.Error())
			return false
		}
	}
	return true
}

// handleTaskDestinations creates and dispatches every destination whose
// condition holds, then completes the current task. No eligible
// destination left means the instance can roll up.
func (e *Engine) handleTaskDestinations(ctx *contextx.Context, instance *objects.WorkflowInstance, revision *objects.WorkflowRevision, task *objects.TaskExecution, correlationId string) error {
	newTasks, creationOk := e.createTaskDestinations(ctx, instance, revision, task.TaskID)

	if !creationOk {
		if err := e.updateInstanceStatus(ctx, instance, task.TaskID, status.FAILED); err != nil {
			return err
		}
		return e.completeTask(ctx, task, instance, status.FAILED)
	}

	if len(newTasks) == 0 {
		if err := e.updateInstanceStatus(ctx, instance, task.TaskID, status.SUCCEEDED); err != nil {
			return err
		}
		return e.completeTask(ctx, task, instance, status.SUCCEEDED)
	}

	if err := e.dispatchTaskDestinations(ctx, instance, revision, correlationId, newTasks); err != nil {
		return err
	}
	return e.completeTask(ctx, task, instance, status.SUCCEEDED)
}

// createTaskDestinations builds executions for each destination of the
// given task. The boolean result is false when a destination task failed
// at creation, which fails the current task instead of dispatching.
func (e *Engine) createTaskDestinations(ctx *contextx.Context, instance *objects.WorkflowInstance, revision *objects.WorkflowRevision, taskId string) ([]objects.TaskExecution, bool) {
	template := revision.Workflow.GetTask(taskId)
	if template == nil {
		return nil, true
	}

	var newTasks []objects.TaskExecution
	for _, destination := range template.TaskDestinations {
		if !e.conditionsMet(ctx, destination, instance) {
			log.Infof(ctx, "conditions not met for destination %s: %s",
				destination.Name, conditions.CombineConditionString(destination.Conditions))
			continue
		}

		if existing := instance.GetTask(destination.Name); existing != nil && !status.IsCreated(existing.Status) {
			log.Infof(ctx, "task %s of payload %s previously dispatched", destination.Name, instance.PayloadID)
			continue
		}

		destinationTemplate := revision.Workflow.GetTask(destination.Name)
		if destinationTemplate == nil {
			log.Errorf(ctx, "task %s of payload %s not found in workflow %s",
				destination.Name, instance.PayloadID, revision.WorkflowID)
			continue
		}

		newTask := e.CreateTaskExecution(ctx, destinationTemplate, instance, "", "", taskId)
		if status.IsFailed(newTask.Status) {
			return nil, false
		}
		newTasks = append(newTasks, *newTask)
	}
	return newTasks, true
}

func (e *Engine) conditionsMet(ctx *contextx.Context, destination objects.TaskDestination, instance *objects.WorkflowInstance) bool {
	var nonEmpty []string
	for _, condition := range destination.Conditions {
		if strings.TrimSpace(condition) != "" {
			nonEmpty = append(nonEmpty, condition)
		}
	}
	if len(nonEmpty) == 0 {
		return true
	}
	return e.params.TryParse(ctx, conditions.CombineConditionString(nonEmpty), instance)
}

func (e *Engine) dispatchTaskDestinations(ctx *contextx.Context, instance *objects.WorkflowInstance, revision *objects.WorkflowRevision, correlationId string, newTasks []objects.TaskExecution) error {
	instance.Tasks = append(instance.Tasks, newTasks...)
	if err := e.instances.UpdateTasks(ctx, instance.ID, instance.Tasks); err != nil {
		return err
	}

	for i := range newTasks {
		task := instance.GetTaskByExecution(newTasks[i].ExecutionID)

		switch {
		case strings.EqualFold(task.TaskType, objects.RouterTaskType):
			if err := e.handleTaskDestinations(ctx, instance, revision, task, correlationId); err != nil {
				return err
			}
		case strings.EqualFold(task.TaskType, objects.ExportTaskType):
			if err := e.handleExport(ctx, revision, instance, task, correlationId, false); err != nil {
				return err
			}
		case strings.EqualFold(task.TaskType, objects.ExternalAppTaskType):
			if err := e.handleExport(ctx, revision, instance, task, correlationId, true); err != nil {
				return err
			}
		default:
			if err := e.dispatchTask(ctx, instance, revision, task, correlationId); err != nil {
				return err
			}
		}
	}
	return nil
}

// dispatchTask publishes a task to the task manager and marks it
// Dispatched.
func (e *Engine) dispatchTask(ctx *contextx.Context, instance *objects.WorkflowInstance, revision *objects.WorkflowRevision, task *objects.TaskExecution, correlationId string) error {
	template := revision.Workflow.GetTask(task.TaskID)
	if template == nil {
		log.Errorf(ctx, "task %s not found in workflow %s", task.TaskID, revision.WorkflowID)
		return nil
	}

	outputs := make([]objects.Artifact, len(template.Artifacts.Output))
	copy(outputs, template.Artifacts.Output)
	for i := range outputs {
		if strings.TrimSpace(outputs[i].Value) == "" {
			outputs[i].Value = fmt.Sprintf("{{ context.executions.%s.output_dir }}/%s", template.ID, outputs[i].Name)
		}
	}
	outputPaths := e.artifacts.Convert(ctx, outputs, instance.PayloadID, instance.ID, instance.BucketID, false)

	dispatch := NewTaskDispatchEvent(task, instance, outputPaths, correlationId, e.storageCfg)
	if err := e.publisher.Publish(ctx, config.TaskDispatchTopic, dispatch); err != nil {
		return err
	}
	return e.instances.UpdateTaskStatus(ctx, instance.ID, task.TaskID, status.DISPATCHED)
}

// handleExport publishes an export request for the task's input files.
// external routes the request to the remote application topic instead of
// the gateway export topic.
func (e *Engine) handleExport(ctx *contextx.Context, revision *objects.WorkflowRevision, instance *objects.WorkflowInstance, task *objects.TaskExecution, correlationId string, external bool) error {
	template := revision.Workflow.GetTask(task.TaskID)

	var destinations []string
	if template != nil {
		destinations = template.ExportDestinationNames()
	}

	files, err := e.exportFiles(ctx, revision, instance, task, destinations)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		log.Errorf(ctx, "no exportable files found for task %s in instance %s", task.TaskID, instance.ID)
		if err := e.updateInstanceStatus(ctx, instance, task.TaskID, status.FAILED); err != nil {
			return err
		}
		return e.completeTask(ctx, task, instance, status.FAILED)
	}

	topic := config.ExportRequestTopic
	target := ""
	if external {
		topic = config.ExternalAppTopic
		target = destinations[0]
	}

	request := NewExportRequestEvent(files, destinations, task.TaskID, instance.ID, correlationId, target, nil)
	if err := e.publisher.Publish(ctx, topic, request); err != nil {
		return err
	}
	return e.instances.UpdateTaskStatus(ctx, instance.ID, task.TaskID, status.DISPATCHED)
}

// exportFiles lists the DICOM files under the task's input artifact
// paths, provided the declared destinations are registered with the
// gateway.
func (e *Engine) exportFiles(ctx *contextx.Context, revision *objects.WorkflowRevision, instance *objects.WorkflowInstance, task *objects.TaskExecution, destinations []string) ([]string, error) {
	registered := revision.Workflow.InformaticsGateway.ExportDestinations
	if len(destinations) == 0 || len(registered) == 0 {
		return nil, nil
	}
	for _, destination := range destinations {
		if !stringListed(registered, destination) {
			log.Errorf(ctx, "export destination %s is not registered with the gateway", destination)
			return nil, nil
		}
	}
	if len(task.InputArtifacts) == 0 {
		return nil, nil
	}

	var files []string
	for _, prefix := range task.InputArtifacts {
		listed, err := e.storage.ListObjects(ctx, instance.BucketID, prefix, true)
		if err != nil {
			return nil, err
		}
		for _, object := range listed {
			if isDicomFile(object.Key) {
				files = append(files, object.Key)
			}
		}
	}
	return files, nil
}

func isDicomFile(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ".dcm")
}

func (e *Engine) completeTask(ctx *contextx.Context, task *objects.TaskExecution, instance *objects.WorkflowInstance, newStatus string) error {
	log.Infof(ctx, "task %s (execution %s) of instance %s complete with status %s",
		task.TaskID, task.ExecutionID, instance.ID, newStatus)
	return e.instances.UpdateTaskStatus(ctx, instance.ID, task.TaskID, newStatus)
}

// updateInstanceStatus rolls the instance status up from its task
// statuses. Failed is sticky.
func (e *Engine) updateInstanceStatus(ctx *contextx.Context, instance *objects.WorkflowInstance, taskId, currentTaskStatus string) error {
	if instance.GetTask(taskId) == nil {
		return nil
	}
	if instance.Status == status.InstanceFailed {
		return nil
	}

	otherFailed := false
	allOthersDone := true
	for i := range instance.Tasks {
		if instance.Tasks[i].TaskID == taskId {
			continue
		}
		if status.IsFailed(instance.Tasks[i].Status) {
			otherFailed = true
		}
		if !status.IsDone(instance.Tasks[i].Status) {
			allOthersDone = false
		}
	}

	if otherFailed || status.IsFailed(currentTaskStatus) {
		instance.Status = status.InstanceFailed
		return e.instances.UpdateInstanceStatus(ctx, instance.ID, status.InstanceFailed)
	}

	if allOthersDone && status.IsDone(currentTaskStatus) {
		instance.Status = status.InstanceSucceeded
		return e.instances.UpdateInstanceStatus(ctx, instance.ID, status.InstanceSucceeded)
	}
	return nil
}

// CreateTaskExecution builds the execution record for a template task,
// resolving plugin arguments and input artifacts up front. A mandatory
// input artifact that cannot be resolved makes the execution start out
// Failed.
func (e *Engine) CreateTaskExecution(ctx *contextx.Context, template *objects.TaskObject, instance *objects.WorkflowInstance, bucketName, payloadId, previousTaskId string) *objects.TaskExecution {
	if bucketName == "" {
		bucketName = instance.BucketID
	}
	if payloadId == "" {
		payloadId = instance.PayloadID
	}

	executionId := uuid.NewString()

	args := map[string]string{}
	for key, value := range template.Args {
		resolved, err := e.params.ResolveParameters(ctx, value, instance)
		if err != nil {
			log.Warnf(ctx, "failure resolving argument %q of task %s, error: %s", key, template.ID, err.Error())
			resolved = value
		}
		args[key] = resolved
	}

	timeout := template.TimeoutMinutes
	if timeout == -1 {
		if perType, ok := e.engineCfg.PerTypeTimeoutMinutes[template.Type]; ok {
			timeout = perType
		} else {
			timeout = e.engineCfg.TaskTimeoutMinutes
		}
	}

	task := &objects.TaskExecution{
		ExecutionID:         executionId,
		WorkflowInstanceID:  instance.ID,
		TaskType:            template.Type,
		TaskStartTime:       time.Now().UTC(),
		TaskPluginArguments: args,
		TaskID:              template.ID,
		PreviousTaskID:      previousTaskId,
		Status:              status.CREATED,
		Reason:              objects.ReasonNone,
		OutputDirectory:     fmt.Sprintf("%s/workflows/%s/%s", payloadId, instance.ID, executionId),
		ResultMetadata:      map[string]interface{}{},
		TimeoutInterval:     timeout,
	}

	inputs, ok := e.artifacts.TryConvert(ctx, template.Artifacts.Input, payloadId, instance.ID, bucketName, true)
	if !ok {
		task.Status = status.FAILED
		task.Reason = objects.ReasonExternalServiceError
		return task
	}
	task.InputArtifacts = inputs
	return task
}

func instanceExists(instances []objects.WorkflowInstance, workflowId string) bool {
	for i := range instances {
		if instances[i].WorkflowID == workflowId {
			return true
		}
	}
	return false
}

func revisionListed(revisions []objects.WorkflowRevision, workflowId string) bool {
	for i := range revisions {
		if revisions[i].WorkflowID == workflowId {
			return true
		}
	}
	return false
}

func stringListed(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
