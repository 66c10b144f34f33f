package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"medflow/app/config"
	"medflow/app/events"
	"medflow/app/objects"
	"medflow/app/storage"
	"medflow/app/workflow/status"
	"medflow/pkg/contextx"
)

func newTestEngine(workflows *fakeWorkflowRepository, instances *fakeInstanceRepository, payloads *fakePayloadRepository) (*Engine, *fakePublisher, *storage.MemoryService) {
	store := storage.NewMemoryService()
	publisher := &fakePublisher{}
	params := NewParameterResolver(workflows, payloads, store)
	artifacts := NewArtifactResolver(instances, store)
	engine := NewEngine(workflows, instances, payloads, store, publisher, params, artifacts,
		config.EngineConfig{TaskTimeoutMinutes: 60, PerTypeTimeoutMinutes: map[string]float64{"argo": 120}},
		config.StorageConfig{Endpoint: "localhost:9000", Bucket: "bucket"})
	return engine, publisher, store
}

func simpleRevision(tasks ...objects.TaskObject) *objects.WorkflowRevision {
	return &objects.WorkflowRevision{
		ID:         "rev1",
		WorkflowID: "wf1",
		Revision:   1,
		Workflow: objects.Workflow{
			Name:    "test-workflow",
			Version: "1.0",
			InformaticsGateway: objects.InformaticsGateway{
				AeTitle:            "MONAI",
				ExportDestinations: []string{"PACS"},
			},
			Tasks: tasks,
		},
	}
}

func argoTask(id string, destinations ...string) objects.TaskObject {
	task := objects.TaskObject{ID: id, Type: objects.ArgoTaskType, TimeoutMinutes: 10}
	for _, destination := range destinations {
		task.TaskDestinations = append(task.TaskDestinations, objects.TaskDestination{Name: destination})
	}
	return task
}

func TestProcessWorkflowRequestCreatesInstanceAndDispatches(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	workflows := newFakeWorkflowRepository(simpleRevision(argoTask("a")))
	instances := newFakeInstanceRepository()
	payloads := newFakePayloadRepository()
	engine, publisher, _ := newTestEngine(workflows, instances, payloads)

	msg := &events.WorkflowRequestEvent{
		Bucket:        "bucket",
		PayloadID:     "pay1",
		Workflows:     []string{"wf1"},
		CorrelationID: "corr1",
	}
	asserter.NoError(engine.ProcessWorkflowRequest(ctx, msg))

	asserter.Len(instances.instances, 1)
	var instance *objects.WorkflowInstance
	for _, stored := range instances.instances {
		instance = stored
	}
	asserter.Equal("wf1", instance.WorkflowID)
	asserter.Equal(status.DISPATCHED, instance.GetTask("a").Status)

	stored, err := payloads.GetByPayloadID(ctx, "pay1")
	asserter.NoError(err)
	asserter.NotNil(stored)

	dispatches := publisher.byTopic(config.TaskDispatchTopic)
	if asserter.Len(dispatches, 1) {
		dispatch := dispatches[0].(*events.TaskDispatchEvent)
		asserter.Equal("a", dispatch.TaskID)
		asserter.Equal("pay1", dispatch.PayloadID)
	}

	// a redelivered request must not create or dispatch anything again
	asserter.NoError(engine.ProcessWorkflowRequest(ctx, msg))
	asserter.Len(instances.instances, 1)
	asserter.Len(publisher.byTopic(config.TaskDispatchTopic), 1)
}

func TestProcessWorkflowRequestRouterRunsInline(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	router := objects.TaskObject{ID: "route", Type: objects.RouterTaskType, TimeoutMinutes: 10,
		TaskDestinations: []objects.TaskDestination{{Name: "t1"}}}
	workflows := newFakeWorkflowRepository(simpleRevision(router, argoTask("t1")))
	instances := newFakeInstanceRepository()
	engine, publisher, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	msg := &events.WorkflowRequestEvent{Bucket: "bucket", PayloadID: "pay1", Workflows: []string{"wf1"}, CorrelationID: "corr1"}
	asserter.NoError(engine.ProcessWorkflowRequest(ctx, msg))

	var instance *objects.WorkflowInstance
	for _, stored := range instances.instances {
		instance = stored
	}
	asserter.Equal(status.SUCCEEDED, instance.GetTask("route").Status)
	asserter.Equal(status.DISPATCHED, instance.GetTask("t1").Status)

	dispatches := publisher.byTopic(config.TaskDispatchTopic)
	if asserter.Len(dispatches, 1) {
		asserter.Equal("t1", dispatches[0].(*events.TaskDispatchEvent).TaskID)
	}
}

func TestTaskUpdateSkipsPreviouslyDispatchedDestination(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	workflows := newFakeWorkflowRepository(simpleRevision(argoTask("a", "b", "c"), argoTask("b"), argoTask("c")))
	instance := &objects.WorkflowInstance{
		ID: "wi1", WorkflowID: "wf1", PayloadID: "pay1", BucketID: "bucket",
		Status: status.InstanceCreated,
		Tasks: []objects.TaskExecution{
			{TaskID: "a", ExecutionID: "ex-a", TaskType: objects.ArgoTaskType, Status: status.DISPATCHED},
			{TaskID: "b", ExecutionID: "ex-b", TaskType: objects.ArgoTaskType, Status: status.ACCEPTED},
		},
	}
	instances := newFakeInstanceRepository(instance)
	engine, publisher, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	msg := &events.TaskUpdateEvent{
		WorkflowInstanceID: "wi1", TaskID: "a", ExecutionID: "ex-a",
		CorrelationID: "corr1", Status: status.SUCCEEDED,
	}
	asserter.NoError(engine.ProcessTaskUpdate(ctx, msg))

	// only c is newly dispatched, b keeps its in-flight execution
	dispatches := publisher.byTopic(config.TaskDispatchTopic)
	if asserter.Len(dispatches, 1) {
		asserter.Equal("c", dispatches[0].(*events.TaskDispatchEvent).TaskID)
	}
	asserter.Equal(status.SUCCEEDED, instance.GetTask("a").Status)
	asserter.Equal(status.ACCEPTED, instance.GetTask("b").Status)
	asserter.Equal(status.DISPATCHED, instance.GetTask("c").Status)
}

func TestTaskUpdateMissingMandatoryOutputFailsTaskAndInstance(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	task := argoTask("a")
	task.Artifacts.Output = []objects.Artifact{{Name: "out1"}}
	workflows := newFakeWorkflowRepository(simpleRevision(task))
	instance := &objects.WorkflowInstance{
		ID: "wi1", WorkflowID: "wf1", PayloadID: "pay1", BucketID: "bucket",
		Status: status.InstanceCreated,
		Tasks: []objects.TaskExecution{
			{TaskID: "a", ExecutionID: "ex-a", TaskType: objects.ArgoTaskType, Status: status.DISPATCHED},
		},
	}
	instances := newFakeInstanceRepository(instance)
	engine, _, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	// the runner reports out1 but nothing was written to storage
	msg := &events.TaskUpdateEvent{
		WorkflowInstanceID: "wi1", TaskID: "a", ExecutionID: "ex-a",
		CorrelationID: "corr1", Status: status.SUCCEEDED,
		Outputs: []events.Storage{{Name: "out1", RelativeRootPath: "pay1/workflows/wi1/ex-a/out1"}},
	}
	asserter.NoError(engine.ProcessTaskUpdate(ctx, msg))

	asserter.Equal(status.FAILED, instance.GetTask("a").Status)
	asserter.Equal(status.InstanceFailed, instance.Status)
}

func TestFailedInstanceStatusIsSticky(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	workflows := newFakeWorkflowRepository(simpleRevision(argoTask("a", "b"), argoTask("b")))
	instance := &objects.WorkflowInstance{
		ID: "wi1", WorkflowID: "wf1", PayloadID: "pay1", BucketID: "bucket",
		Status: status.InstanceFailed,
		Tasks: []objects.TaskExecution{
			{TaskID: "a", ExecutionID: "ex-a", TaskType: objects.ArgoTaskType, Status: status.FAILED},
			{TaskID: "b", ExecutionID: "ex-b", TaskType: objects.ArgoTaskType, Status: status.DISPATCHED},
		},
	}
	instances := newFakeInstanceRepository(instance)
	engine, _, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	msg := &events.TaskUpdateEvent{
		WorkflowInstanceID: "wi1", TaskID: "b", ExecutionID: "ex-b",
		CorrelationID: "corr1", Status: status.SUCCEEDED,
	}
	asserter.NoError(engine.ProcessTaskUpdate(ctx, msg))

	asserter.Equal(status.SUCCEEDED, instance.GetTask("b").Status)
	asserter.Equal(status.InstanceFailed, instance.Status)
}

func TestTaskUpdateInvalidTransitionIsDropped(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	workflows := newFakeWorkflowRepository(simpleRevision(argoTask("a")))
	instance := &objects.WorkflowInstance{
		ID: "wi1", WorkflowID: "wf1", PayloadID: "pay1", BucketID: "bucket",
		Status: status.InstanceCreated,
		Tasks: []objects.TaskExecution{
			{TaskID: "a", ExecutionID: "ex-a", TaskType: objects.ArgoTaskType, Status: status.SUCCEEDED},
		},
	}
	instances := newFakeInstanceRepository(instance)
	engine, _, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	msg := &events.TaskUpdateEvent{
		WorkflowInstanceID: "wi1", TaskID: "a", ExecutionID: "ex-a",
		CorrelationID: "corr1", Status: status.ACCEPTED,
	}
	asserter.NoError(engine.ProcessTaskUpdate(ctx, msg))
	asserter.Equal(status.SUCCEEDED, instance.GetTask("a").Status)
}

func TestTimedOutUpdateOnFailedTaskPublishesCancellation(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	workflows := newFakeWorkflowRepository(simpleRevision(argoTask("a")))
	instance := &objects.WorkflowInstance{
		ID: "wi1", WorkflowID: "wf1", PayloadID: "pay1", BucketID: "bucket",
		Status: status.InstanceFailed,
		Tasks: []objects.TaskExecution{
			{TaskID: "a", ExecutionID: "ex-a", TaskType: objects.ClinicalReviewTaskType, Status: status.FAILED},
		},
	}
	instances := newFakeInstanceRepository(instance)
	engine, publisher, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	msg := &events.TaskUpdateEvent{
		WorkflowInstanceID: "wi1", TaskID: "a", ExecutionID: "ex-a",
		CorrelationID: "corr1", Status: status.FAILED, Reason: objects.ReasonTimedOut,
	}
	asserter.NoError(engine.ProcessTaskUpdate(ctx, msg))

	cancellations := publisher.byTopic(config.TaskCancellationTopic)
	if asserter.Len(cancellations, 1) {
		cancellation := cancellations[0].(*events.TaskCancellationEvent)
		asserter.Equal("ex-a", cancellation.ExecutionID)
		asserter.Equal(objects.ReasonTimedOut, cancellation.Reason)
	}
}

func TestProcessExportCompleteSuccessRollsInstanceUp(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	exportTask := objects.TaskObject{ID: "e", Type: objects.ExportTaskType, TimeoutMinutes: 10,
		ExportDestinations: []objects.ExportDestination{{Name: "PACS"}}}
	workflows := newFakeWorkflowRepository(simpleRevision(exportTask))
	instance := &objects.WorkflowInstance{
		ID: "wi1", WorkflowID: "wf1", PayloadID: "pay1", BucketID: "bucket",
		Status: status.InstanceCreated,
		Tasks: []objects.TaskExecution{
			{TaskID: "e", ExecutionID: "ex-e", TaskType: objects.ExportTaskType, Status: status.DISPATCHED},
		},
	}
	instances := newFakeInstanceRepository(instance)
	engine, _, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	msg := &events.ExportCompleteEvent{WorkflowInstanceID: "wi1", ExportTaskID: "e", Status: events.ExportStatusSuccess}
	asserter.NoError(engine.ProcessExportComplete(ctx, msg, "corr1"))

	asserter.Equal(status.SUCCEEDED, instance.GetTask("e").Status)
	asserter.Equal(status.InstanceSucceeded, instance.Status)
}

func TestProcessExportCompleteFailureFailsInstance(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	exportTask := objects.TaskObject{ID: "e", Type: objects.ExportTaskType, TimeoutMinutes: 10,
		ExportDestinations: []objects.ExportDestination{{Name: "PACS"}}}
	workflows := newFakeWorkflowRepository(simpleRevision(exportTask))
	instance := &objects.WorkflowInstance{
		ID: "wi1", WorkflowID: "wf1", PayloadID: "pay1", BucketID: "bucket",
		Status: status.InstanceCreated,
		Tasks: []objects.TaskExecution{
			{TaskID: "e", ExecutionID: "ex-e", TaskType: objects.ExportTaskType, Status: status.DISPATCHED},
		},
	}
	instances := newFakeInstanceRepository(instance)
	engine, _, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	msg := &events.ExportCompleteEvent{WorkflowInstanceID: "wi1", ExportTaskID: "e", Status: events.ExportStatusFailure}
	asserter.NoError(engine.ProcessExportComplete(ctx, msg, "corr1"))

	asserter.Equal(status.FAILED, instance.GetTask("e").Status)
	asserter.Equal(status.InstanceFailed, instance.Status)
}

func TestHandleExportPublishesDicomFiles(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	exportTask := objects.TaskObject{ID: "e", Type: objects.ExportTaskType, TimeoutMinutes: 10,
		ExportDestinations: []objects.ExportDestination{{Name: "PACS"}}}
	exportTask.Artifacts.Input = []objects.Artifact{{Name: "in", Value: "{{ context.input.dicom }}"}}
	workflows := newFakeWorkflowRepository(simpleRevision(exportTask))
	instances := newFakeInstanceRepository()
	engine, publisher, store := newTestEngine(workflows, instances, newFakePayloadRepository())

	store.Put("bucket", "pay1/dcm/series1/file1.dcm", []byte("dicom"))
	store.Put("bucket", "pay1/dcm/series1/notes.txt", []byte("text"))

	msg := &events.WorkflowRequestEvent{Bucket: "bucket", PayloadID: "pay1", Workflows: []string{"wf1"}, CorrelationID: "corr1"}
	asserter.NoError(engine.ProcessWorkflowRequest(ctx, msg))

	requests := publisher.byTopic(config.ExportRequestTopic)
	if asserter.Len(requests, 1) {
		request := requests[0].(*events.ExportRequestEvent)
		asserter.Equal([]string{"pay1/dcm/series1/file1.dcm"}, request.Files)
		asserter.Equal([]string{"PACS"}, request.Destinations)
	}

	var instance *objects.WorkflowInstance
	for _, stored := range instances.instances {
		instance = stored
	}
	asserter.Equal(status.DISPATCHED, instance.GetTask("e").Status)
}

func TestProcessArtifactsReceivedWaitsForMandatoryOutputs(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	optional := false
	task := argoTask("a")
	task.Artifacts.Output = []objects.Artifact{
		{Name: "out1"},
		{Name: "out2", Mandatory: &optional},
	}
	workflows := newFakeWorkflowRepository(simpleRevision(task))
	instance := &objects.WorkflowInstance{
		ID: "wi1", WorkflowID: "wf1", PayloadID: "pay1", BucketID: "bucket",
		Status: status.InstanceCreated,
		Tasks: []objects.TaskExecution{
			{TaskID: "a", ExecutionID: "ex-a", TaskType: objects.ArgoTaskType, Status: status.DISPATCHED},
		},
	}
	instances := newFakeInstanceRepository(instance)
	engine, _, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	first := &events.ArtifactsReceivedEvent{
		WorkflowInstanceID: "wi1", TaskID: "a", PayloadID: "pay1", CorrelationID: "corr1",
		Artifacts: []events.ReceivedArtifact{{Type: "out2", Path: "pay1/out2"}},
	}
	asserter.NoError(engine.ProcessArtifactsReceived(ctx, first))
	asserter.Equal(status.DISPATCHED, instance.GetTask("a").Status)

	second := &events.ArtifactsReceivedEvent{
		WorkflowInstanceID: "wi1", TaskID: "a", PayloadID: "pay1", CorrelationID: "corr1",
		Artifacts: []events.ReceivedArtifact{{Type: "out1", Path: "pay1/out1"}},
	}
	asserter.NoError(engine.ProcessArtifactsReceived(ctx, second))

	asserter.Equal(status.SUCCEEDED, instance.GetTask("a").Status)
	asserter.Equal("pay1/out1", instance.GetTask("a").OutputArtifacts["out1"])
	asserter.Equal("pay1/out2", instance.GetTask("a").OutputArtifacts["out2"])
	asserter.Equal(status.InstanceSucceeded, instance.Status)
}

func TestCreateTaskExecutionTimeoutDefaults(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	workflows := newFakeWorkflowRepository(simpleRevision(argoTask("a")))
	instances := newFakeInstanceRepository()
	engine, _, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	instance := &objects.WorkflowInstance{ID: "wi1", PayloadID: "pay1", BucketID: "bucket"}

	argo := &objects.TaskObject{ID: "t", Type: objects.ArgoTaskType, TimeoutMinutes: -1}
	task := engine.CreateTaskExecution(ctx, argo, instance, "", "", "")
	asserter.Equal(float64(120), task.TimeoutInterval)

	docker := &objects.TaskObject{ID: "t", Type: objects.DockerTaskType, TimeoutMinutes: -1}
	task = engine.CreateTaskExecution(ctx, docker, instance, "", "", "")
	asserter.Equal(float64(60), task.TimeoutInterval)

	explicit := &objects.TaskObject{ID: "t", Type: objects.DockerTaskType, TimeoutMinutes: 15}
	task = engine.CreateTaskExecution(ctx, explicit, instance, "", "", "")
	asserter.Equal(float64(15), task.TimeoutInterval)
	asserter.Equal("pay1/workflows/wi1/"+task.ExecutionID, task.OutputDirectory)
}

func TestCreateTaskExecutionUnresolvedMandatoryInputFails(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	workflows := newFakeWorkflowRepository(simpleRevision(argoTask("a")))
	instance := &objects.WorkflowInstance{ID: "wi1", PayloadID: "pay1", BucketID: "bucket"}
	instances := newFakeInstanceRepository(instance)
	engine, _, _ := newTestEngine(workflows, instances, newFakePayloadRepository())

	template := &objects.TaskObject{ID: "t", Type: objects.ArgoTaskType, TimeoutMinutes: 10}
	template.Artifacts.Input = []objects.Artifact{
		{Name: "in", Value: "{{ context.executions.missing.output_dir }}"},
	}

	task := engine.CreateTaskExecution(ctx, template, instance, "", "", "")
	asserter.Equal(status.FAILED, task.Status)
	asserter.Equal(objects.ReasonExternalServiceError, task.Reason)
}
