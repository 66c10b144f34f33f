package config

import (
	"strings"

	"github.com/go-ini/ini"
)

type EngineConfig struct {
	// TaskTimeoutMinutes applies whenever a task declares -1.
	TaskTimeoutMinutes    float64            `json:"task_timeout_minutes"`
	PerTypeTimeoutMinutes map[string]float64 `json:"per_type_timeout_minutes"`
}

func NewDefaultEngineConfig(c *ini.Section) EngineConfig {
	timeout, _ := c.Key("task_timeout_minutes").Float64()
	if timeout == 0 {
		timeout = 60
	}

	// keys of the form timeout_<taskType> override the default per type
	perType := map[string]float64{}
	for _, key := range c.Keys() {
		if strings.HasPrefix(key.Name(), "timeout_") {
			if v, err := key.Float64(); err == nil {
				perType[strings.TrimPrefix(key.Name(), "timeout_")] = v
			}
		}
	}

	return EngineConfig{
		TaskTimeoutMinutes:    timeout,
		PerTypeTimeoutMinutes: perType,
	}
}
