// Command refresh-tokens rotates access tokens for one account or for every
// active account whose credential is expiring soon. Intended for cron.
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
)

func main() {
	var (
		accountID = flag.Uint("account", 0, "refresh only this account (0 sweeps every active account)")
		force     = flag.Bool("force", false, "refresh regardless of expiry")
	)
	flag.Parse()

	a, err := app.New()
	if err != nil {
		log.Fatal("failed to initialize: ", err)
	}
	defer a.Close()

	ctx := context.Background()

	var accounts []*models.Account
	if *accountID > 0 {
		account, err := a.Repos.Account.GetByID(ctx, *accountID)
		if err != nil {
			a.Logger.Fatal("failed to load account", zap.Uint("account_id", *accountID), zap.Error(err))
		}
		accounts = []*models.Account{account}
	} else {
		if accounts, err = a.Repos.Account.ListActive(ctx, models.PlatformTikTok); err != nil {
			a.Logger.Fatal("failed to list accounts", zap.Error(err))
		}
	}

	var refreshed, failed, skipped int
	for _, account := range accounts {
		if !*force && !a.Auth.NeedsTokenRefresh(ctx, account) {
			skipped++
			continue
		}
		if a.Auth.RefreshToken(ctx, account) {
			refreshed++
		} else {
			failed++
			a.Logger.Warn("refresh failed", zap.Uint("account_id", account.ID))
		}
	}

	fmt.Printf("refreshed=%d failed=%d skipped=%d\n", refreshed, failed, skipped)
	if failed > 0 {
		os.Exit(1)
	}
}
