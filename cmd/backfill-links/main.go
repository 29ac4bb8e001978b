// Command backfill-links re-resolves unlinked order items after mappings
// were added or approved, optionally deducting stock for shippable orders
// the items belong to. It also repairs orphaned review-queue rows.
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
		accountID = flag.Uint("account", 0, "account id to backfill (0 with -all backfills every active account)")
		all       = flag.Bool("all", false, "backfill every active account")
		limit     = flag.Int("limit", 500, "max unlinked items per account")
		deduct    = flag.Bool("deduct", false, "deduct stock for shippable orders after linking")
		dryRun    = flag.Bool("dry-run", false, "report what would change without writing")
		orphans   = flag.Bool("repair-orphans", false, "reset orphaned pending products to pending")
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
		accounts, err = a.Repos.Account.ListActive(ctx, models.PlatformTikTok)
		if err != nil {
			a.Logger.Fatal("failed to list accounts", zap.Error(err))
		}
	} else {
		account, err := a.Repos.Account.GetByID(ctx, *accountID)
		if err != nil {
			a.Logger.Fatal("account not found", zap.Uint("account_id", *accountID), zap.Error(err))
		}
		accounts = []*models.Account{account}
	}

	exitCode := 0
	for _, account := range accounts {
		if err := backfillAccount(ctx, a, account, *limit, *deduct, *dryRun); err != nil {
			a.Logger.Error("backfill failed",
				zap.Uint("account_id", account.ID), zap.Error(err))
			exitCode = 1
		}
		if *orphans {
			if err := repairOrphans(ctx, a, account, *dryRun); err != nil {
				a.Logger.Error("orphan repair failed",
					zap.Uint("account_id", account.ID), zap.Error(err))
				exitCode = 1
			}
		}
	}
	os.Exit(exitCode)
}

func backfillAccount(ctx context.Context, a *app.App, account *models.Account, limit int, deduct, dryRun bool) error {
	items, err := a.Repos.Order.ListUnlinkedItems(ctx, account.ID, limit)
	if err != nil {
		return err
	}

	var linked, deducted int
	touchedOrders := map[uint]bool{}
	for _, item := range items {
		if dryRun {
			mapping, err := a.Repos.SkuMapping.ActiveBySKU(ctx, account.Platform, account.ID, item.ExternalSKU)
			if err == nil && mapping != nil {
				linked++
			}
			continue
		}

		didLink, err := a.Linker.LinkItemToMapping(ctx, item, account.Platform, account.ID)
		if err != nil {
			a.Logger.Warn("link failed",
				zap.Uint("item_id", item.ID),
				zap.String("sku", item.ExternalSKU),
				zap.Error(err))
			continue
		}
		if !didLink {
			continue
		}
		linked++

		if deduct && !touchedOrders[item.OrderID] {
			touchedOrders[item.OrderID] = true
			order, err := a.Repos.Order.GetOrderForItem(ctx, item.ID)
			if err != nil {
				return err
			}
			if order.Shippable() {
				summary, err := a.Linker.DeductStockForOrder(ctx, order)
				if err != nil {
					return err
				}
				deducted += summary.Deducted
			}
		}
	}

	mode := ""
	if dryRun {
		mode = " (dry run)"
	}
	fmt.Printf("account %d: unlinked=%d linked=%d deducted=%d%s\n",
		account.ID, len(items), linked, deducted, mode)
	return nil
}

func repairOrphans(ctx context.Context, a *app.App, account *models.Account, dryRun bool) error {
	rows, err := a.Repos.PendingProduct.ListOrphans(ctx, account.ID)
	if err != nil {
		return err
	}
	for _, pending := range rows {
		if dryRun {
			continue
		}
		pending.Status = models.PendingStatusPending
		pending.ReviewedAt = nil
		if err := a.Repos.PendingProduct.Save(ctx, pending); err != nil {
			return err
		}
	}
	mode := ""
	if dryRun {
		mode = " (dry run)"
	}
	fmt.Printf("account %d: orphans=%d%s\n", account.ID, len(rows), mode)
	return nil
}
