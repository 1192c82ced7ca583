package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"carshare/internal/config"
	"carshare/internal/database"
	"carshare/internal/domain/notification"
	"carshare/internal/domain/wallet"
	"carshare/internal/pkg/logging"
)

func main() {
	purge := flag.Bool("purge-notifications", true, "delete read notifications older than the retention window")
	retention := flag.Duration("retention", notification.DefaultRetention, "notification retention window")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("info").WithError(err).Fatal("load config")
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("db connect failed")
	}

	results, err := wallet.NewService(db).ReconcileAll(ctx)
	if err != nil {
		logger.WithError(err).Fatal("reconcile failed")
	}

	mismatched := 0
	for _, r := range results {
		if r.Balanced() {
			continue
		}
		mismatched++
		logger.WithFields(logging.Fields{
			"user_id":          r.UserID,
			"available":        r.AvailableBalance,
			"locked":           r.LockedBalance,
			"ledger_available": r.LedgerAvailable,
			"ledger_total":     r.LedgerTotal,
		}).Error("wallet out of balance")
	}

	if *purge {
		svc := notification.NewService(notification.NewRepository(db), logger)
		if _, err := svc.PurgeRead(ctx, *retention); err != nil {
			logger.WithError(err).Error("notification purge failed")
		}
	}

	logger.WithFields(logging.Fields{
		"wallets":    len(results),
		"mismatched": mismatched,
	}).Info("reconciliation completed")

	if mismatched > 0 {
		os.Exit(1)
	}
}
