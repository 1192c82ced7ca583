package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"carshare/internal/database"
	"carshare/internal/domain"
	"carshare/internal/domain/wallet"
	jwtsvc "carshare/internal/pkg/jwt"
	"carshare/internal/pkg/logging"
	"carshare/internal/repository"
)

type seedUser struct {
	id      int64
	role    string
	balance int64
}

var users = []seedUser{
	{id: 1, role: "admin"},
	{id: 2, role: "user"},
	{id: 3, role: "user"},
	{id: 10, role: "user", balance: 250_000},
	{id: 11, role: "user", balance: 50_000},
	{id: 12, role: "user", balance: 5_000},
}

var cars = []domain.Car{
	{OwnerID: 2, Title: "Toyota Corolla 2022", Region: "metro", PricePerDayCents: 4_500, CancelPolicy: domain.CancelFlexible},
	{OwnerID: 2, Title: "Tesla Model 3", Region: "airport", PricePerDayCents: 12_000, CancelPolicy: domain.CancelStrict},
	{OwnerID: 3, Title: "Subaru Outback", Region: "rural", PricePerDayCents: 7_000, CancelPolicy: domain.CancelModerate},
	{OwnerID: 3, Title: "Mini Cooper", Region: "", PricePerDayCents: 5_500, CancelPolicy: domain.CancelModerate},
}

func main() {
	dsn := flag.String("dsn", envOr("DATABASE_URL", "carshare.db"), "database DSN")
	secret := flag.String("jwt-secret", envOr("JWT_SECRET", "change-me-jwt-secret"), "secret for dev tokens")
	ttl := flag.Duration("token-ttl", 7*24*time.Hour, "dev token lifetime")
	flag.Parse()

	logger := logging.NewLogger(envOr("LOG_LEVEL", "info"))
	ctx := context.Background()

	db, err := database.Connect(*dsn, logger)
	if err != nil {
		logger.WithError(err).Fatal("db connection failed")
	}
	if err := database.Migrate(db); err != nil {
		logger.WithError(err).Fatal("migrate failed")
	}

	carRepo := repository.NewCarRepository(db)
	for i := range cars {
		if err := carRepo.Create(ctx, &cars[i]); err != nil {
			logger.WithError(err).WithField("title", cars[i].Title).Fatal("create car failed")
		}
		logger.WithFields(logging.Fields{
			"car_id":   cars[i].ID,
			"owner_id": cars[i].OwnerID,
			"policy":   cars[i].CancelPolicy,
		}).Info("car created")
	}

	// Credits go through the ledger so reconciliation holds for seeded wallets.
	ledger := wallet.NewService(db)
	runID := time.Now().UTC().Format("20060102T150405")
	for _, u := range users {
		if u.balance == 0 {
			continue
		}
		res, err := ledger.Credit(ctx, u.id, u.balance, "seed", fmt.Sprintf("seed-%s-%d", runID, u.id))
		if err != nil {
			logger.WithError(err).WithField("user_id", u.id).Fatal("credit wallet failed")
		}
		logger.WithFields(logging.Fields{
			"user_id":   u.id,
			"available": res.AvailableBalance,
		}).Info("wallet funded")
	}

	j := jwtsvc.New(*secret, *ttl)
	fmt.Println("Dev tokens:")
	for _, u := range users {
		token, err := j.GenerateToken(u.id, u.role)
		if err != nil {
			logger.WithError(err).Fatal("generate token failed")
		}
		fmt.Printf("  user=%d role=%s\n  Authorization: Bearer %s\n", u.id, u.role, token)
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
