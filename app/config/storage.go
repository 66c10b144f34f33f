package config

import "github.com/go-ini/ini"

type StorageConfig struct {
	Endpoint          string `json:"endpoint"`
	Bucket            string `json:"bucket"`
	SecuredConnection bool   `json:"secured_connection"`
}

func NewStorageConfig(c *ini.Section) StorageConfig {
	endpoint := c.Key("endpoint").Value()
	bucket := c.Key("bucket").Value()
	secured, _ := c.Key("secured_connection").Bool()
	if bucket == "" {
		bucket = "monaideploy"
	}
	return StorageConfig{
		Endpoint:          endpoint,
		Bucket:            bucket,
		SecuredConnection: secured,
	}
}
