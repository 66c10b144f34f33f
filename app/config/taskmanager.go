package config

import (
	"strings"

	"github.com/go-ini/ini"
)

type TaskManagerConfig struct {
	MaximumNumberOfConcurrentJobs int `json:"maximum_number_of_concurrent_jobs"`
	// PermanentAccountPlugins lists plugin types that get a provisioned
	// storage account instead of per-job temporary credentials.
	PermanentAccountPlugins []string `json:"permanent_account_plugins"`
	TemporaryCredentialTTL  int      `json:"temporary_credential_ttl"`
}

func NewTaskManagerConfig(c *ini.Section) TaskManagerConfig {
	maxJobs, err := c.Key("maximum_number_of_concurrent_jobs").Int()
	if err != nil {
		maxJobs = 20
	}
	ttl, _ := c.Key("temporary_credential_ttl").Int()
	if ttl == 0 {
		ttl = 3600
	}

	var permanent []string
	for _, name := range strings.Split(c.Key("permanent_account_plugins").Value(), ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			permanent = append(permanent, name)
		}
	}

	return TaskManagerConfig{
		MaximumNumberOfConcurrentJobs: maxJobs,
		PermanentAccountPlugins:       permanent,
		TemporaryCredentialTTL:        ttl,
	}
}
