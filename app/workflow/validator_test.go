package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"medflow/app/objects"
)

func validWorkflow() *objects.Workflow {
	return &objects.Workflow{
		Name:    "ct-brain",
		Version: "1.0.0",
		InformaticsGateway: objects.InformaticsGateway{
			AeTitle:            "MONAI",
			ExportDestinations: []string{"PACS"},
		},
		Tasks: []objects.TaskObject{
			{
				ID:   "segment",
				Type: objects.ArgoTaskType,
				TaskDestinations: []objects.TaskDestination{
					{Name: "export-report"},
				},
			},
			{
				ID:   "export-report",
				Type: objects.ExportTaskType,
				ExportDestinations: []objects.ExportDestination{
					{Name: "PACS"},
				},
			},
		},
	}
}

func TestValidateWorkflowValid(t *testing.T) {
	asserter := assert.New(t)

	result := ValidateWorkflow(validWorkflow())
	asserter.True(result.Valid())
	asserter.Empty(result.Errors)
	asserter.Equal([]string{"segment => export-report"}, result.SuccessfulPaths)
}

func TestValidateWorkflowBranchingPaths(t *testing.T) {
	asserter := assert.New(t)

	workflow := validWorkflow()
	workflow.Tasks[0].TaskDestinations = []objects.TaskDestination{
		{Name: "export-report"},
		{Name: "notify"},
	}
	workflow.Tasks = append(workflow.Tasks, objects.TaskObject{
		ID: "notify", Type: objects.EmailTaskType,
		Args: map[string]string{"recipient_emails": "pacs-admin@hospital.org"},
	})

	result := ValidateWorkflow(workflow)
	asserter.True(result.Valid())
	asserter.ElementsMatch([]string{
		"segment => export-report",
		"segment => notify",
	}, result.SuccessfulPaths)
}

func TestValidateWorkflowMissingSpecFields(t *testing.T) {
	asserter := assert.New(t)

	result := ValidateWorkflow(&objects.Workflow{})
	asserter.False(result.Valid())
	asserter.Contains(result.Errors, "missing workflow name")
	asserter.Contains(result.Errors, "missing workflow version")
	asserter.Contains(result.Errors, "missing workflow tasks")
}

func TestValidateWorkflowInvalidTaskID(t *testing.T) {
	asserter := assert.New(t)

	workflow := validWorkflow()
	workflow.Tasks[0].ID = "seg ment!"

	result := ValidateWorkflow(workflow)
	asserter.False(result.Valid())
	asserter.Contains(result.Errors, `task id "seg ment!" contains invalid characters`)
}

func TestValidateWorkflowDuplicateTaskID(t *testing.T) {
	asserter := assert.New(t)

	workflow := validWorkflow()
	workflow.Tasks = append(workflow.Tasks, objects.TaskObject{
		ID: "segment", Type: objects.RouterTaskType,
	})

	result := ValidateWorkflow(workflow)
	asserter.False(result.Valid())
	asserter.Contains(result.Errors, `task id "segment" is not unique`)
}

func TestValidateWorkflowUnknownTaskType(t *testing.T) {
	asserter := assert.New(t)

	workflow := validWorkflow()
	workflow.Tasks[0].Type = "mystery"

	result := ValidateWorkflow(workflow)
	asserter.False(result.Valid())
	asserter.Contains(result.Errors, `task "segment" has unknown type "mystery"`)
}

func TestValidateWorkflowMissingTaskDestination(t *testing.T) {
	asserter := assert.New(t)

	workflow := validWorkflow()
	workflow.Tasks[0].TaskDestinations = []objects.TaskDestination{{Name: "nowhere"}}

	result := ValidateWorkflow(workflow)
	asserter.False(result.Valid())
	asserter.Contains(result.Errors, "task destination nowhere not found")
}

func TestValidateWorkflowUnregisteredExportDestination(t *testing.T) {
	asserter := assert.New(t)

	workflow := validWorkflow()
	workflow.Tasks[1].ExportDestinations = []objects.ExportDestination{{Name: "DICOMWEB"}}

	result := ValidateWorkflow(workflow)
	asserter.False(result.Valid())
	asserter.Contains(result.Errors, "missing destination DICOMWEB in task export-report")
}

func TestValidateWorkflowEmptyGatewayExportDestinations(t *testing.T) {
	asserter := assert.New(t)

	workflow := validWorkflow()
	workflow.InformaticsGateway.ExportDestinations = nil

	result := ValidateWorkflow(workflow)
	asserter.False(result.Valid())
	asserter.Contains(result.Errors, "informatics gateway export destinations can not be empty")
}

func TestValidateWorkflowUnreferencedTask(t *testing.T) {
	asserter := assert.New(t)

	workflow := validWorkflow()
	workflow.Tasks = append(workflow.Tasks, objects.TaskObject{
		ID: "orphan", Type: objects.RouterTaskType,
	})

	result := ValidateWorkflow(workflow)
	asserter.False(result.Valid())
	asserter.Contains(result.Errors, "found tasks without any task destination to them: orphan")
}

func TestValidateWorkflowConvergenceLoop(t *testing.T) {
	asserter := assert.New(t)

	workflow := validWorkflow()
	workflow.Tasks[1].TaskDestinations = []objects.TaskDestination{{Name: "segment"}}

	result := ValidateWorkflow(workflow)
	asserter.False(result.Valid())

	found := false
	for _, message := range result.Errors {
		if message == "detected task convergence on path: segment => export-report => ..." {
			found = true
		}
	}
	asserter.True(found, "errors: %v", result.Errors)
}
