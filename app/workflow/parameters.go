package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"medflow/app/conditions"
	"medflow/app/objects"
	"medflow/app/workflow/interfaces"
	"medflow/pkg/contextx"
	"medflow/pkg/log"
)

const (
	executionsPrefix     = "context.executions"
	dicomSeriesPrefix    = "context.dicom.series"
	patientDetailsPrefix = "context.input.patient_details"
	workflowPrefix       = "context.workflow"
)

var placeholderRegex = regexp.MustCompile(`\{\{(.*?)\}\}`)

// ParameterResolver substitutes {{ ... }} placeholders with values from a
// workflow instance and its collaborators, then evaluates conditions.
type ParameterResolver struct {
	workflows interfaces.WorkflowRepository
	payloads  interfaces.PayloadRepository
	dicom     interfaces.DicomService
}

func NewParameterResolver(workflows interfaces.WorkflowRepository, payloads interfaces.PayloadRepository, dicom interfaces.DicomService) *ParameterResolver {
	return &ParameterResolver{
		workflows: workflows,
		payloads:  payloads,
		dicom:     dicom,
	}
}

// TryParse resolves and evaluates a condition string. Every failure,
// parse error included, evaluates to false: a condition that cannot be
// read is a condition that is not met.
func (p *ParameterResolver) TryParse(ctx *contextx.Context, condition string, instance *objects.WorkflowInstance) bool {
	if strings.TrimSpace(condition) == "" || instance == nil {
		return false
	}

	resolved, err := p.ResolveParameters(ctx, condition, instance)
	if err != nil {
		log.Warnf(ctx, "failure resolving condition %q, error: %s", condition, err.Error())
		return false
	}
	group, err := conditions.Create(resolved)
	if err != nil {
		log.Warnf(ctx, "failure parsing condition %q, error: %s", resolved, err.Error())
		return false
	}
	result, err := group.Evaluate()
	if err != nil {
		log.Warnf(ctx, "failure evaluating condition %q, error: %s", resolved, err.Error())
		return false
	}
	return result
}

// ResolveParameters replaces each placeholder with its quoted value.
// Replacements apply back to front so earlier indexes stay valid.
func (p *ParameterResolver) ResolveParameters(ctx *contextx.Context, input string, instance *objects.WorkflowInstance) (string, error) {
	matches := placeholderRegex.FindAllStringIndex(input, -1)
	if len(matches) == 0 {
		return input, nil
	}

	for i := len(matches) - 1; i >= 0; i-- {
		start, end := matches[i][0], matches[i][1]
		result, err := p.resolveMatch(ctx, input[start:end], instance)
		if err != nil {
			return "", err
		}
		if isNullResult(result) {
			result = conditions.NULL
		}
		input = input[:start] + "'" + result + "'" + input[end:]
	}
	return input, nil
}

func isNullResult(result string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(result))
	return trimmed == "" || trimmed == conditions.NULL || trimmed == conditions.UNDEFINED
}

func (p *ParameterResolver) resolveMatch(ctx *contextx.Context, match string, instance *objects.WorkflowInstance) (string, error) {
	value := strings.TrimSpace(match[2 : len(match)-2])

	switch {
	case strings.HasPrefix(value, executionsPrefix):
		return p.resolveExecutionTasks(value, instance), nil
	case strings.HasPrefix(value, dicomSeriesPrefix):
		return p.resolveDicom(ctx, value, instance)
	case strings.HasPrefix(value, patientDetailsPrefix):
		return p.resolvePatientDetails(ctx, value, instance)
	case strings.HasPrefix(value, workflowPrefix):
		return p.resolveContextWorkflow(ctx, value, instance)
	}
	return "", nil
}

// resolveExecutionTasks serves context.executions lookups. Two shapes are
// accepted: task['<taskId>'].'<metadataKey>' addressing result metadata
// directly, and <taskId>.<key>[...] addressing the execution fields.
func (p *ParameterResolver) resolveExecutionTasks(value string, instance *objects.WorkflowInstance) string {
	subValue := strings.TrimPrefix(strings.TrimSpace(value), executionsPrefix)
	subValues := strings.Split(subValue, ".")
	if len(subValues) < 3 {
		return ""
	}

	if strings.HasPrefix(subValues[1], "task[") {
		taskId := extractQuoted(subValues[1])
		task := instance.GetTask(taskId)
		if task == nil {
			return ""
		}
		metadataKey := strings.Trim(subValues[2], "'")
		return metadataFromDictionary(task.ResultMetadata, metadataKey)
	}

	taskId := strings.Trim(subValues[1], "'")
	task := instance.GetTask(taskId)
	if task == nil {
		return ""
	}

	var resultKey string
	if len(subValues) > 3 {
		resultKey = extractQuoted(subValues[3])
	}

	switch strings.ToLower(subValues[2]) {
	case "task_id":
		return task.TaskID
	case "status":
		return task.Status
	case "execution_id":
		return task.ExecutionID
	case "output_dir":
		return task.OutputDirectory
	case "task_type":
		return task.TaskType
	case "previous_task_id":
		return task.PreviousTaskID
	case "error_msg":
		return task.Reason
	case "result":
		return metadataFromDictionary(task.ResultMetadata, resultKey)
	case "start_time":
		return task.TaskStartTime.Format("02/01/2006 15:04:05")
	}
	return ""
}

func metadataFromDictionary(metadata map[string]interface{}, key string) string {
	if key == "" || metadata == nil {
		return ""
	}
	if value, ok := metadata[key]; ok {
		if valueStr, ok := value.(string); ok {
			return valueStr
		}
	}
	return ""
}

// extractQuoted pulls the first single-quoted segment out of a value like
// task['T1'] or 'Fred'.
func extractQuoted(value string) string {
	parts := strings.Split(value, "'")
	if len(parts) < 2 {
		return strings.Trim(value, "'")
	}
	return parts[1]
}

// resolveDicom serves context.dicom.series.any/.all('<group>','<element>').
func (p *ParameterResolver) resolveDicom(ctx *contextx.Context, value string, instance *objects.WorkflowInstance) (string, error) {
	subValue := strings.TrimPrefix(strings.TrimSpace(value), dicomSeriesPrefix)
	valueArr := strings.Split(subValue, "'")
	if len(valueArr) < 4 {
		return "", fmt.Errorf("malformed dicom query %q", value)
	}
	keyId := valueArr[1] + valueArr[3]

	if strings.HasPrefix(subValue, ".any") {
		return p.dicom.GetAnyValue(ctx, keyId, instance.PayloadID, instance.BucketID)
	}
	if strings.HasPrefix(subValue, ".all") {
		return p.dicom.GetAllValue(ctx, keyId, instance.PayloadID, instance.BucketID)
	}
	return "", nil
}

func (p *ParameterResolver) resolvePatientDetails(ctx *contextx.Context, value string, instance *objects.WorkflowInstance) (string, error) {
	keyValue := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(value), patientDetailsPrefix), ".", "")
	if instance.PayloadID == "" {
		return "", nil
	}

	payload, err := p.payloads.GetByPayloadID(ctx, instance.PayloadID)
	if err != nil || payload == nil || payload.PatientDetails == nil {
		return "", err
	}
	patient := payload.PatientDetails

	switch keyValue {
	case "id":
		return patient.PatientID, nil
	case "name":
		return patient.PatientName, nil
	case "sex":
		return patient.PatientSex, nil
	case "dob":
		if patient.PatientDob == nil {
			return "", nil
		}
		return patient.PatientDob.Format("02/01/2006"), nil
	case "age":
		return patient.PatientAge, nil
	case "hospital_id":
		return patient.PatientHospitalID, nil
	}
	return "", nil
}

func (p *ParameterResolver) resolveContextWorkflow(ctx *contextx.Context, value string, instance *objects.WorkflowInstance) (string, error) {
	keyValue := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(value), workflowPrefix), ".", "")
	if instance.WorkflowID == "" {
		return "", nil
	}

	revision, err := p.workflows.GetByWorkflowID(ctx, instance.WorkflowID)
	if err != nil || revision == nil {
		return "", err
	}

	switch keyValue {
	case "name":
		return revision.Workflow.Name, nil
	case "description":
		return revision.Workflow.Description, nil
	}
	return "", nil
}
