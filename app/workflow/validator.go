package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"medflow/app/objects"
)

var taskIdPattern = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

// maxPathDepth bounds DAG traversal during validation so a cyclic
// definition cannot loop forever.
const maxPathDepth = 100

// ValidationResult collects every problem found in a workflow definition
// plus the successful root-to-leaf paths (conditions not accounted for).
type ValidationResult struct {
	Errors          []string
	SuccessfulPaths []string
}

func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateWorkflow statically checks a workflow definition: spec fields,
// task id characters and uniqueness, destination references, export
// destination registration, unreferenced tasks and loops.
func ValidateWorkflow(workflow *objects.Workflow) *ValidationResult {
	v := &validator{workflow: workflow}

	v.validateSpec()
	v.detectUnreferencedTasks()
	if len(workflow.Tasks) > 0 {
		v.validatePaths(&workflow.Tasks[0], 0, nil)
	}
	v.validateTaskDestinations()
	v.validateExportDestinations()

	return &ValidationResult{Errors: v.errors, SuccessfulPaths: v.successfulPaths}
}

type validator struct {
	workflow        *objects.Workflow
	errors          []string
	successfulPaths []string
}

func (v *validator) addError(format string, args ...interface{}) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateSpec() {
	if strings.TrimSpace(v.workflow.Name) == "" {
		v.addError("missing workflow name")
	}
	if strings.TrimSpace(v.workflow.Version) == "" {
		v.addError("missing workflow version")
	}
	if len(v.workflow.Tasks) == 0 {
		v.addError("missing workflow tasks")
	}

	seen := map[string]bool{}
	for _, task := range v.workflow.Tasks {
		if !taskIdPattern.MatchString(task.ID) {
			v.addError("task id %q contains invalid characters", task.ID)
		}
		if seen[task.ID] {
			v.addError("task id %q is not unique", task.ID)
		}
		seen[task.ID] = true

		if !stringListed(objects.ValidTaskTypes, strings.ToLower(task.Type)) {
			v.addError("task %q has unknown type %q", task.ID, task.Type)
		}
	}
}

func (v *validator) detectUnreferencedTasks() {
	if len(v.workflow.Tasks) == 0 {
		return
	}
	firstTask := v.workflow.Tasks[0]

	referenced := map[string]bool{}
	for _, task := range v.workflow.Tasks {
		for _, destination := range task.TaskDestinations {
			referenced[destination.Name] = true
		}
	}

	var unreferenced []string
	for _, task := range v.workflow.Tasks {
		if task.ID == firstTask.ID {
			continue
		}
		if !referenced[task.ID] {
			unreferenced = append(unreferenced, task.ID)
		}
	}
	if len(unreferenced) > 0 {
		v.addError("found tasks without any task destination to them: %s", strings.Join(unreferenced, ","))
	}
}

func (v *validator) validateTaskDestinations() {
	for _, task := range v.workflow.Tasks {
		for _, destination := range task.TaskDestinations {
			if v.workflow.GetTask(destination.Name) == nil {
				v.addError("task destination %s not found", destination.Name)
			}
		}
	}
}

func (v *validator) validateExportDestinations() {
	registered := v.workflow.InformaticsGateway.ExportDestinations

	for _, task := range v.workflow.Tasks {
		names := task.ExportDestinationNames()
		if len(names) == 0 {
			continue
		}
		if len(registered) == 0 {
			v.addError("informatics gateway export destinations can not be empty")
			return
		}
		for _, name := range names {
			if !stringListed(registered, name) {
				v.addError("missing destination %s in task %s", name, task.ID)
			}
		}
	}
}

// validatePaths walks the DAG from the first task, recording each
// root-to-leaf path and flagging convergence and infinite loops.
func (v *validator) validatePaths(currentTask *objects.TaskObject, depth int, path []string) {
	if currentTask == nil {
		return
	}

	if depth > maxPathDepth {
		v.addError("detected infinite task loop on path: %s => ...", strings.Join(head(path, 5), " => "))
		return
	}

	if len(currentTask.TaskDestinations) == 0 {
		path = append(path, currentTask.ID)
		v.successfulPaths = append(v.successfulPaths, strings.Join(path, " => "))
		return
	}

	if stringListed(path, currentTask.ID) {
		v.addError("detected task convergence on path: %s => ...", strings.Join(path, " => "))
		return
	}
	path = append(path, currentTask.ID)

	for _, destination := range currentTask.TaskDestinations {
		nextTask := v.workflow.GetTask(destination.Name)
		if nextTask == nil {
			v.addError("task %q has task destination %q that could not be found", currentTask.ID, destination.Name)
			continue
		}
		branch := make([]string, len(path))
		copy(branch, path)
		v.validatePaths(nextTask, depth+1, branch)
	}
}

func head(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[:n]
}
