package handles

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"medflow/app/objects"
	"medflow/app/workflow"
	"medflow/pkg/log"
)

func (a *Api) ListWorkflows(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := requestContext(r)

	revisions, err := a.workflows.List(ctx)
	if err != nil {
		log.Errorf(ctx, "failure listing workflows, error: %s", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if revisions == nil {
		revisions = []objects.WorkflowRevision{}
	}
	writeJson(w, http.StatusOK, revisions)
}

func (a *Api) GetWorkflow(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	ctx := requestContext(r)
	workflowId := params.ByName("id")

	revision, err := a.workflows.GetByWorkflowID(ctx, workflowId)
	if err != nil {
		log.Errorf(ctx, "failure reading workflow %s, error: %s", workflowId, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if revision == nil {
		writeError(w, http.StatusNotFound, "workflow "+workflowId+" not found")
		return
	}
	writeJson(w, http.StatusOK, revision)
}

func (a *Api) CreateWorkflow(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := requestContext(r)

	definition, err := readWorkflow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if result := workflow.ValidateWorkflow(definition); !result.Valid() {
		writeError(w, http.StatusBadRequest, "invalid workflow definition", result.Errors...)
		return
	}

	revision := &objects.WorkflowRevision{
		ID:         uuid.NewString(),
		WorkflowID: uuid.NewString(),
		Revision:   1,
		Workflow:   *definition,
	}
	if err := a.workflows.Create(ctx, revision); err != nil {
		log.Errorf(ctx, "failure storing workflow, error: %s", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJson(w, http.StatusCreated, map[string]string{"workflow_id": revision.WorkflowID})
}

// UpdateWorkflow stores the definition as a new revision of an existing
// workflow. Earlier revisions stay queryable.
func (a *Api) UpdateWorkflow(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	ctx := requestContext(r)
	workflowId := params.ByName("id")

	current, err := a.workflows.GetByWorkflowID(ctx, workflowId)
	if err != nil {
		log.Errorf(ctx, "failure reading workflow %s, error: %s", workflowId, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if current == nil {
		writeError(w, http.StatusNotFound, "workflow "+workflowId+" not found")
		return
	}

	definition, err := readWorkflow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if result := workflow.ValidateWorkflow(definition); !result.Valid() {
		writeError(w, http.StatusBadRequest, "invalid workflow definition", result.Errors...)
		return
	}

	revision := &objects.WorkflowRevision{
		ID:         uuid.NewString(),
		WorkflowID: workflowId,
		Revision:   current.Revision + 1,
		Workflow:   *definition,
	}
	if err := a.workflows.Create(ctx, revision); err != nil {
		log.Errorf(ctx, "failure storing workflow %s, error: %s", workflowId, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJson(w, http.StatusCreated, map[string]interface{}{
		"workflow_id": workflowId,
		"revision":    revision.Revision,
	})
}

func (a *Api) DeleteWorkflow(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	ctx := requestContext(r)
	workflowId := params.ByName("id")

	current, err := a.workflows.GetByWorkflowID(ctx, workflowId)
	if err != nil {
		log.Errorf(ctx, "failure reading workflow %s, error: %s", workflowId, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if current == nil {
		writeError(w, http.StatusNotFound, "workflow "+workflowId+" not found")
		return
	}

	if err := a.workflows.SoftDelete(ctx, workflowId); err != nil {
		log.Errorf(ctx, "failure deleting workflow %s, error: %s", workflowId, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJson(w, http.StatusOK, map[string]string{"workflow_id": workflowId})
}

func (a *Api) ListInstances(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := requestContext(r)

	payloadId := r.URL.Query().Get("payloadId")
	if payloadId == "" {
		writeError(w, http.StatusBadRequest, "payloadId query parameter is required")
		return
	}

	instances, err := a.instances.GetByPayloadID(ctx, payloadId)
	if err != nil {
		log.Errorf(ctx, "failure listing instances of payload %s, error: %s", payloadId, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if instances == nil {
		instances = []objects.WorkflowInstance{}
	}
	writeJson(w, http.StatusOK, instances)
}

func (a *Api) GetInstance(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	ctx := requestContext(r)
	instanceId := params.ByName("id")

	instance, err := a.instances.GetByInstanceID(ctx, instanceId)
	if err != nil {
		log.Errorf(ctx, "failure reading instance %s, error: %s", instanceId, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if instance == nil {
		writeError(w, http.StatusNotFound, "workflow instance "+instanceId+" not found")
		return
	}
	writeJson(w, http.StatusOK, instance)
}
