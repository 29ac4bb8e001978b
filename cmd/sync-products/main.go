// Command sync-products runs or queues a catalog sync for one account or
// for every active account with product sync enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"shopsync/internal/app"
	"shopsync/internal/models"
	"shopsync/internal/worker"
)

func main() {
	var (
		accountID = flag.Uint("account", 0, "account id to sync (0 with -all syncs every enabled account)")
		all       = flag.Bool("all", false, "sync every active account with product sync enabled")
		queue     = flag.Bool("queue", false, "enqueue the job instead of running inline")
	)
	flag.Parse()

	if *accountID == 0 && !*all {
		fmt.Fprintln(os.Stderr, "either -account or -all is required")
		flag.Usage()
		os.Exit(2)
	}

	a, err := app.New()
	if err != nil {
		log.Fatal("failed to initialize: ", err)
	}
	defer a.Close()

	ctx := context.Background()

	var accounts []*models.Account
	if *all {
		active, err := a.Repos.Account.ListActive(ctx, models.PlatformTikTok)
		if err != nil {
			a.Logger.Fatal("failed to list accounts", zap.Error(err))
		}
		for _, account := range active {
			if account.AutoSyncProducts {
				accounts = append(accounts, account)
			}
		}
	} else {
		account, err := a.Repos.Account.GetByID(ctx, *accountID)
		if err != nil {
			a.Logger.Fatal("account not found", zap.Uint("account_id", *accountID), zap.Error(err))
		}
		accounts = []*models.Account{account}
	}

	var producer *worker.Producer
	if *queue {
		producer = worker.NewProducer(a.Config.KafkaBrokers)
		defer producer.Close()
	}

	exitCode := 0
	for _, account := range accounts {
		if *queue {
			job := worker.Job{Type: worker.JobSyncProducts, AccountID: account.ID}
			if err := producer.Enqueue(ctx, job); err != nil {
				a.Logger.Error("failed to enqueue",
					zap.Uint("account_id", account.ID), zap.Error(err))
				exitCode = 1
				continue
			}
			fmt.Printf("account %d: queued\n", account.ID)
			continue
		}

		result, err := a.Products.SyncProducts(ctx, account)
		if err != nil {
			a.Logger.Error("sync failed",
				zap.Uint("account_id", account.ID), zap.Error(err))
			exitCode = 1
			continue
		}
		fmt.Printf("account %d: already_linked=%d auto_linked=%d queued=%d skipped=%d failed=%d\n",
			account.ID, result.AlreadyLinked, result.AutoLinked, result.Queued, result.Skipped, result.Failed)
		for _, msg := range result.Errors {
			fmt.Printf("  error: %s\n", msg)
		}
	}
	os.Exit(exitCode)
}
