package config

import "github.com/go-ini/ini"

var (
	LoadFile, _ = ini.LooseLoad("/opt/medflow.ini")
	Config      = Configuration{
		Database:    NewDefaultDatabaseConfig(LoadFile.Section("db")),
		Messaging:   NewMessagingConfig(LoadFile.Section("rabbitMQ")),
		LOG:         NewDefaultLogConfig(LoadFile.Section("log")),
		Engine:      NewDefaultEngineConfig(LoadFile.Section("engine")),
		TaskManager: NewTaskManagerConfig(LoadFile.Section("taskManager")),
		Storage:     NewStorageConfig(LoadFile.Section("storage")),
	}
)

type Configuration struct {
	Database    DatabaseConfig    `json:"database"`
	Messaging   MessagingConfig   `json:"messaging"`
	LOG         LogConfig         `json:"log"`
	Engine      EngineConfig      `json:"engine"`
	TaskManager TaskManagerConfig `json:"task_manager"`
	Storage     StorageConfig     `json:"storage"`
}
