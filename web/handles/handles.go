package handles

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"gopkg.in/yaml.v2"

	"medflow/app/db"
	"medflow/app/objects"
	"medflow/pkg/contextx"
	"medflow/pkg/log"
)

// Api serves the workflow management surface: definition CRUD and
// read-only instance queries.
type Api struct {
	workflows *db.WorkflowRepository
	instances *db.WorkflowInstanceRepository
}

func NewApi(workflows *db.WorkflowRepository, instances *db.WorkflowInstanceRepository) *Api {
	return &Api{workflows: workflows, instances: instances}
}

func (a *Api) Router() *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", a.Health)

	router.GET("/workflows", a.ListWorkflows)
	router.POST("/workflows", a.CreateWorkflow)
	router.GET("/workflows/:id", a.GetWorkflow)
	router.PUT("/workflows/:id", a.UpdateWorkflow)
	router.DELETE("/workflows/:id", a.DeleteWorkflow)

	router.GET("/instances", a.ListInstances)
	router.GET("/instances/:id", a.GetInstance)

	return router
}

func (a *Api) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func writeError(w http.ResponseWriter, code int, message string, errors ...string) {
	writeJson(w, code, &errorBody{Code: code, Message: message, Errors: errors})
}

func writeJson(w http.ResponseWriter, code int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Errorf(nil, "failure serializing response, error: %s", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

// readWorkflow accepts a definition as JSON or, when the content type
// says so, as YAML.
func readWorkflow(r *http.Request) (*objects.Workflow, error) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	definition := &objects.Workflow{}
	if isYamlRequest(r) {
		err = yaml.Unmarshal(body, definition)
	} else {
		err = json.Unmarshal(body, definition)
	}
	if err != nil {
		return nil, err
	}
	return definition, nil
}

func isYamlRequest(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	return strings.Contains(contentType, "yaml") || strings.Contains(contentType, "yml")
}

func requestContext(r *http.Request) *contextx.Context {
	ctx := contextx.NewContext()
	if correlationId := r.Header.Get("X-Correlation-Id"); correlationId != "" {
		ctx.Set("correlationId", correlationId)
	}
	return ctx
}
