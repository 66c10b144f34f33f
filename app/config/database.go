package config

import (
	"fmt"

	"github.com/go-ini/ini"
)

type DatabaseConfig struct {
	Connection string `json:"connection"`
	Database   string `json:"database"`
	Timeout    int    `json:"timeout"`
}

func NewDefaultDatabaseConfig(c *ini.Section) DatabaseConfig {
	host := c.Key("host").String()
	port := c.Key("port").Value()
	user := c.Key("user").Value()
	passwd := c.Key("passwd").Value()
	database := c.Key("database").String()
	timeout, _ := c.Key("timeout").Int()
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "27017"
	}
	if database == "" {
		database = "WorkloadManagerDatabase"
	}
	if timeout == 0 {
		timeout = 10
	}

	connection := fmt.Sprintf("mongodb://%s:%s", host, port)
	if user != "" {
		connection = fmt.Sprintf("mongodb://%s:%s@%s:%s", user, passwd, host, port)
	}
	return DatabaseConfig{
		Connection: connection,
		Database:   database,
		Timeout:    timeout,
	}
}
