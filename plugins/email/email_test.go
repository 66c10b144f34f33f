package email

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

type recordingPublisher struct {
	topics []string
	events []interface{}
}

func (p *recordingPublisher) Publish(ctx *contextx.Context, topic string, event interface{}) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func emailDispatchEvent() *events.TaskDispatchEvent {
	return &events.TaskDispatchEvent{
		WorkflowInstanceID: "wi1",
		TaskID:             "notify",
		ExecutionID:        "ex1",
		CorrelationID:      "corr1",
		Type:               objects.EmailTaskType,
		TaskPluginArguments: map[string]string{
			"recipient_emails": "a@hospital.org, b@hospital.org",
			"recipient_roles":  "admin",
			"workflow_name":    "ct-brain",
			"metadata_values":  "00100040, 00100010",
		},
	}
}

func TestFactoryRequiresRecipients(t *testing.T) {
	asserter := assert.New(t)

	event := emailDispatchEvent()
	event.TaskPluginArguments = map[string]string{}

	_, err := Factory(&recordingPublisher{})(event, storage.NewMemoryService())
	asserter.Error(err)
}

func TestExecutePublishesNotificationAndSucceeds(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	publisher := &recordingPublisher{}
	plugin, err := Factory(publisher)(emailDispatchEvent(), storage.NewMemoryService())
	asserter.NoError(err)

	result, err := plugin.ExecuteTask(ctx)
	asserter.NoError(err)
	asserter.Equal(status.SUCCEEDED, result.Status)

	asserter.Equal([]string{config.EmailRequestTopic}, publisher.topics)
	request := publisher.events[0].(*RequestEvent)
	asserter.NotEmpty(request.ID)
	asserter.Equal("ct-brain", request.WorkflowName)
	asserter.Equal([]string{"a@hospital.org", "b@hospital.org"}, request.Emails)
	asserter.Equal([]string{"admin"}, request.Roles)
	asserter.Contains(request.Metadata, "00100040")
	asserter.Contains(request.Metadata, "00100010")
}
