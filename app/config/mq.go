package config

import (
	"fmt"

	"github.com/go-ini/ini"
)

const (
	WorkflowRequestTopic  = "md.workflow.request"
	ArtifactReceivedTopic = "md.workflow.artifactrecieved"
	ExportCompleteTopic   = "md.export.complete"
	ExportRequestTopic    = "md.export.request"
	ExternalAppTopic      = "md.externalapp.request"
	TaskDispatchTopic     = "md.tasks.dispatch"
	TaskCallbackTopic     = "md.tasks.callback"
	TaskUpdateTopic       = "md.tasks.update"
	TaskCancellationTopic = "md.tasks.cancellation"
	ClinicalReviewTopic   = "aide.clinical_review.request"
	EmailRequestTopic     = "md.email.notification"
)

type MessagingConfig struct {
	Connection   string `json:"connection"`
	Exchange     string `json:"exchange"`
	DeadLetter   string `json:"dead_letter"`
	RequeueDelay int    `json:"requeue_delay"`
	Retries      int    `json:"retries"`
}

func NewMessagingConfig(c *ini.Section) MessagingConfig {
	host := c.Key("host").Value()
	user := c.Key("user").Value()
	passwd := c.Key("passwd").Value()
	exchange := c.Key("exchange").Value()
	deadLetter := c.Key("dead_letter_exchange").Value()
	requeueDelay, _ := c.Key("requeue_delay").Int()
	retries, _ := c.Key("retries").Int()
	if exchange == "" {
		exchange = "monaideploy"
	}
	if deadLetter == "" {
		deadLetter = exchange + "-dead-letter"
	}
	if requeueDelay == 0 {
		requeueDelay = 30
	}
	if retries == 0 {
		retries = 3
	}
	return MessagingConfig{
		Connection:   fmt.Sprintf("rabbit://%s:%s@%s/?amqp_durable_queues=true", user, passwd, host),
		Exchange:     exchange,
		DeadLetter:   deadLetter,
		RequeueDelay: requeueDelay,
		Retries:      retries,
	}
}
