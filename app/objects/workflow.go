package objects

import "encoding/json"

const (
	ArgoTaskType           = "argo"
	ClinicalReviewTaskType = "aide_clinical_review"
	RouterTaskType         = "router"
	ExportTaskType         = "export"
	ExternalAppTaskType    = "remote_app_execution"
	DockerTaskType         = "docker"
	EmailTaskType          = "email"
)

var ValidTaskTypes = []string{
	ArgoTaskType,
	ClinicalReviewTaskType,
	RouterTaskType,
	ExportTaskType,
	DockerTaskType,
	ExternalAppTaskType,
	EmailTaskType,
}

// WorkflowRevision is one stored version of a workflow definition.
type WorkflowRevision struct {
	ID         string   `json:"id" bson:"id"`
	WorkflowID string   `json:"workflow_id" bson:"workflow_id"`
	Revision   int      `json:"revision" bson:"revision"`
	Workflow   Workflow `json:"workflow" bson:"workflow"`
	Deleted    int64    `json:"deleted" bson:"deleted"`
}

type Workflow struct {
	Name               string             `json:"name" bson:"name" yaml:"name"`
	Version            string             `json:"version" bson:"version" yaml:"version"`
	Description        string             `json:"description" bson:"description" yaml:"description"`
	InformaticsGateway InformaticsGateway `json:"informatics_gateway" bson:"informatics_gateway" yaml:"informatics_gateway"`
	Tasks              []TaskObject       `json:"tasks" bson:"tasks" yaml:"tasks"`
	DataRetentionDays  *int               `json:"data_retention_days,omitempty" bson:"data_retention_days,omitempty" yaml:"data_retention_days,omitempty"`
}

type InformaticsGateway struct {
	AeTitle            string   `json:"ae_title" bson:"ae_title" yaml:"ae_title"`
	DataOrigins        []string `json:"data_origins,omitempty" bson:"data_origins,omitempty" yaml:"data_origins,omitempty"`
	ExportDestinations []string `json:"export_destinations,omitempty" bson:"export_destinations,omitempty" yaml:"export_destinations,omitempty"`
}

type TaskObject struct {
	ID                 string              `json:"id" bson:"id" yaml:"id"`
	Description        string              `json:"description" bson:"description" yaml:"description"`
	Type               string              `json:"type" bson:"type" yaml:"type"`
	Args               map[string]string   `json:"args" bson:"args" yaml:"args"`
	TaskDestinations   []TaskDestination   `json:"task_destinations,omitempty" bson:"task_destinations,omitempty" yaml:"task_destinations,omitempty"`
	ExportDestinations []ExportDestination `json:"export_destinations,omitempty" bson:"export_destinations,omitempty" yaml:"export_destinations,omitempty"`
	Artifacts          ArtifactMap         `json:"artifacts" bson:"artifacts" yaml:"artifacts"`
	TimeoutMinutes     float64             `json:"timeout_minutes" bson:"timeout_minutes" yaml:"timeout_minutes"`
}

type TaskDestination struct {
	Name       string   `json:"name" bson:"name" yaml:"name"`
	Conditions []string `json:"conditions,omitempty" bson:"conditions,omitempty" yaml:"conditions,omitempty"`
}

type ExportDestination struct {
	Name string `json:"name" bson:"name" yaml:"name"`
}

type ArtifactMap struct {
	Input  []Artifact `json:"input,omitempty" bson:"input,omitempty" yaml:"input,omitempty"`
	Output []Artifact `json:"output,omitempty" bson:"output,omitempty" yaml:"output,omitempty"`
}

type Artifact struct {
	Name      string `json:"name" bson:"name" yaml:"name"`
	Value     string `json:"value" bson:"value" yaml:"value"`
	Mandatory *bool  `json:"mandatory,omitempty" bson:"mandatory,omitempty" yaml:"mandatory,omitempty"`
}

// IsMandatory defaults to true when the field is omitted.
func (a Artifact) IsMandatory() bool {
	if a.Mandatory == nil {
		return true
	}
	return *a.Mandatory
}

func (w *Workflow) GetTask(taskId string) *TaskObject {
	for i := range w.Tasks {
		if w.Tasks[i].ID == taskId {
			return &w.Tasks[i]
		}
	}
	return nil
}

func (t *TaskObject) DestinationNames() []string {
	names := make([]string, 0, len(t.TaskDestinations))
	for _, destination := range t.TaskDestinations {
		names = append(names, destination.Name)
	}
	return names
}

func (t *TaskObject) ExportDestinationNames() []string {
	names := make([]string, 0, len(t.ExportDestinations))
	for _, destination := range t.ExportDestinations {
		names = append(names, destination.Name)
	}
	return names
}

func (w Workflow) String() string {
	data, _ := json.Marshal(&w)
	return string(data)
}
