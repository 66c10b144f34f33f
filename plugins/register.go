package plugins

import (
	"medflow/app/objects"
	"medflow/app/taskmanager"
	"medflow/app/workflow/interfaces"
	"medflow/plugins/email"
	"medflow/plugins/review"
)

// RegisterAll wires every in-process runner into the registry. Argo and
// docker tasks run on external executors that consume the dispatch topic
// themselves and report back over the update topic.
func RegisterAll(registry *taskmanager.Registry, publisher interfaces.Publisher) {
	registry.Register(objects.ClinicalReviewTaskType, review.Factory(publisher))
	registry.Register(objects.EmailTaskType, email.Factory(publisher))
}
