package workflow

import (
	"strings"

	"medflow/app/config"
	"medflow/app/events"
	"medflow/app/objects"
	"medflow/app/workflow/status"
)

// NewTaskDispatchEvent builds the dispatch message for one task execution,
// carrying storage descriptors for every input and output artifact.
func NewTaskDispatchEvent(task *objects.TaskExecution, instance *objects.WorkflowInstance, outputArtifacts map[string]string, correlationId string, storageCfg config.StorageConfig) *events.TaskDispatchEvent {
	inputs := make([]events.Storage, 0, len(task.InputArtifacts))
	for name, path := range task.InputArtifacts {
		inputs = append(inputs, storageEntry(name, path, instance.BucketID, storageCfg))
	}

	outputs := make([]events.Storage, 0, len(outputArtifacts))
	for name, path := range outputArtifacts {
		outputs = append(outputs, storageEntry(name, path, instance.BucketID, storageCfg))
	}

	pluginArgs := map[string]string{}
	for k, v := range task.TaskPluginArguments {
		pluginArgs[k] = v
	}

	// clinical review tasks name the task under review; hand the runner its
	// execution id as well
	if reviewedTaskId, ok := pluginArgs["reviewed_task_id"]; ok {
		if reviewed := instance.GetTask(strings.ToLower(reviewedTaskId)); reviewed != nil {
			pluginArgs["reviewed_execution_id"] = reviewed.ExecutionID
		}
	}

	intermediate := storageEntry(task.TaskID, task.OutputDirectory, instance.BucketID, storageCfg)

	return &events.TaskDispatchEvent{
		WorkflowInstanceID:  instance.ID,
		TaskID:              task.TaskID,
		ExecutionID:         task.ExecutionID,
		CorrelationID:       correlationId,
		PayloadID:           instance.PayloadID,
		Type:                task.TaskType,
		Status:              status.CREATED,
		TaskPluginArguments: pluginArgs,
		Inputs:              inputs,
		Outputs:             outputs,
		IntermediateStorage: &intermediate,
	}
}

func storageEntry(name, path, bucket string, storageCfg config.StorageConfig) events.Storage {
	return events.Storage{
		Name:              name,
		Endpoint:          storageCfg.Endpoint,
		Bucket:            bucket,
		RelativeRootPath:  path,
		SecuredConnection: storageCfg.SecuredConnection,
	}
}

// NewExportRequestEvent builds the message handed to the informatics
// gateway for export and remote app tasks. Target is empty for plain
// exports and names the remote application entry otherwise.
func NewExportRequestEvent(files, destinations []string, taskId, instanceId, correlationId, target string, plugins []string) *events.ExportRequestEvent {
	return &events.ExportRequestEvent{
		WorkflowInstanceID: instanceId,
		ExportTaskID:       taskId,
		CorrelationID:      correlationId,
		Files:              files,
		Destinations:       destinations,
		Target:             target,
		PluginAssemblies:   plugins,
	}
}

func NewTaskCancellationEvent(task *objects.TaskExecution, instanceId, reason, message string) *events.TaskCancellationEvent {
	return &events.TaskCancellationEvent{
		WorkflowInstanceID: instanceId,
		TaskID:             task.TaskID,
		ExecutionID:        task.ExecutionID,
		Reason:             reason,
		Message:            message,
	}
}
