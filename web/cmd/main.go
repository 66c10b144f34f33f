package main

import (
	"net/http"

	"medflow/app/config"
	"medflow/app/db"
	"medflow/pkg/log"
	"medflow/web/handles"
)

func main() {
	database, err := db.Connect(config.Config.Database)
	if err != nil {
		panic(err)
	}

	api := handles.NewApi(
		db.NewWorkflowRepository(database),
		db.NewWorkflowInstanceRepository(database),
	)

	log.Infof(nil, "workflow management api listening on :8080")
	log.Errorf(nil, "%s", http.ListenAndServe(":8080", api.Router()))
}
