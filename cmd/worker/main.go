package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"shopsync/internal/app"
	"shopsync/internal/worker"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatal("failed to initialize: ", err)
	}
	defer a.Close()

	w := worker.New(a.Config.KafkaBrokers, a.Repos, a.Orders, a.Products, a.Auth, a.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	w.Stop()
}
