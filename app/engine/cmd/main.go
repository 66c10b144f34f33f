package main

import (
	"os"
	"os/signal"
	"syscall"

	"medflow/app/engine/server"
	"medflow/pkg/log"
)

func main() {
	svc := server.NewEngineServer()
	if err := svc.Initialize(); err != nil {
		panic(err)
	}
	if err := svc.Start(); err != nil {
		panic(err)
	}
	log.Infof(nil, "workflow engine started")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs
	svc.Stop()
}
