package workflow

import (
	"strings"

	"medflow/app/objects"
	"medflow/app/workflow/interfaces"
	"medflow/pkg/contextx"
	"medflow/pkg/log"
)

const inputDicomPrefix = "context.input.dicom"

// ArtifactResolver converts declarative artifact value expressions into
// concrete storage paths.
type ArtifactResolver struct {
	instances interfaces.WorkflowInstanceRepository
	storage   interfaces.StorageService
}

func NewArtifactResolver(instances interfaces.WorkflowInstanceRepository, storage interfaces.StorageService) *ArtifactResolver {
	return &ArtifactResolver{
		instances: instances,
		storage:   storage,
	}
}

// Convert resolves each artifact to a path, skipping any artifact whose
// expression cannot be resolved. Callers doing mandatory-artifact checks
// must detect omissions from the returned map.
func (r *ArtifactResolver) Convert(ctx *contextx.Context, artifacts []objects.Artifact, payloadId, workflowInstanceId, bucketId string, shouldExistYet bool) map[string]string {
	artifactPaths := map[string]string{}

	for _, artifact := range artifacts {
		name, path, ok := r.convertOne(ctx, artifact, payloadId, workflowInstanceId, bucketId, shouldExistYet)
		if !ok {
			log.Debugf(ctx, "artifact %q with value %q skipped, could not be resolved", artifact.Name, artifact.Value)
			continue
		}
		artifactPaths[name] = path
	}

	return artifactPaths
}

// TryConvert is the strict variant used at task creation: a mandatory
// artifact that fails to resolve fails the whole conversion.
func (r *ArtifactResolver) TryConvert(ctx *contextx.Context, artifacts []objects.Artifact, payloadId, workflowInstanceId, bucketId string, shouldExistYet bool) (map[string]string, bool) {
	artifactPaths := map[string]string{}

	for _, artifact := range artifacts {
		name, path, ok := r.convertOne(ctx, artifact, payloadId, workflowInstanceId, bucketId, shouldExistYet)
		if !ok {
			if artifact.IsMandatory() {
				log.Errorf(ctx, "mandatory artifact %q with value %q was not found", artifact.Name, artifact.Value)
				return map[string]string{}, false
			}
			continue
		}
		artifactPaths[name] = path
	}

	return artifactPaths, true
}

func (r *ArtifactResolver) convertOne(ctx *contextx.Context, artifact objects.Artifact, payloadId, workflowInstanceId, bucketId string, shouldExistYet bool) (string, string, bool) {
	if strings.TrimSpace(artifact.Name) == "" || strings.TrimSpace(artifact.Value) == "" {
		return "", "", false
	}

	variable, ok := trimArtifactVariable(artifact.Value)
	if !ok {
		return "", "", false
	}
	suffix := artifactSuffix(artifact.Value)

	return r.convertVariable(ctx, artifact, variable, workflowInstanceId, payloadId, bucketId, shouldExistYet, suffix)
}

// trimArtifactVariable takes the expression proper out of a value like
// "{{ context.input.dicom }}": the second space-separated token.
func trimArtifactVariable(value string) (string, bool) {
	parts := strings.Split(value, " ")
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], true
}

func artifactSuffix(value string) string {
	parts := strings.Split(value, "}")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (r *ArtifactResolver) convertVariable(ctx *contextx.Context, artifact objects.Artifact, variable, workflowInstanceId, payloadId, bucketId string, shouldExistYet bool, suffix string) (string, string, bool) {
	lowered := strings.ToLower(variable)

	if strings.HasPrefix(lowered, inputDicomPrefix) {
		return r.verifyExists(ctx, artifact.Name, payloadId+"/dcm"+suffix, bucketId, shouldExistYet)
	}

	if strings.HasPrefix(lowered, executionsPrefix) {
		cleaned := strings.NewReplacer("{", "", "}", "").Replace(variable)
		words := strings.Split(cleaned, ".")
		if len(words) < 4 {
			return "", "", false
		}
		taskId := words[2]
		location := words[3]

		task, err := r.instances.GetTask(ctx, workflowInstanceId, taskId)
		if err != nil || task == nil {
			return "", "", false
		}

		if strings.EqualFold(location, "output_dir") {
			return r.verifyExists(ctx, artifact.Name, task.OutputDirectory+suffix, bucketId, shouldExistYet)
		}

		if strings.EqualFold(location, "artifacts") {
			if len(words) < 5 {
				return "", "", false
			}
			artifactName := words[4]
			outputPath, ok := task.OutputArtifacts[artifactName]
			if !ok || outputPath == "" {
				return "", "", false
			}
			return r.verifyExists(ctx, artifactName, outputPath, bucketId, shouldExistYet)
		}
	}

	return "", "", false
}

func (r *ArtifactResolver) verifyExists(ctx *contextx.Context, name, path, bucketId string, shouldExistYet bool) (string, string, bool) {
	if !shouldExistYet {
		return name, path, true
	}

	existing, err := r.storage.VerifyObjectsExist(ctx, bucketId, []string{path})
	if err != nil {
		log.Errorf(ctx, "verify artifact %q existence failed, error: %s", path, err.Error())
		return "", "", false
	}
	if !existing[path] {
		return "", "", false
	}
	return name, path, true
}
