package main

import (
	"log"

	"shopsync/internal/api"
	"shopsync/internal/app"
	"shopsync/internal/worker"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatal("failed to initialize: ", err)
	}
	defer a.Close()

	producer := worker.NewProducer(a.Config.KafkaBrokers)
	defer producer.Close()

	server := api.New(a.Config, a.Logger, a.Repos, a.Auth, producer, a.Tracker)
	if err := server.Start(); err != nil {
		log.Fatal("server stopped: ", err)
	}
}
