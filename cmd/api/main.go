package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carshare/internal/config"
	"carshare/internal/database"
	"carshare/internal/domain/booking"
	"carshare/internal/domain/notification"
	"carshare/internal/domain/payment"
	"carshare/internal/domain/pricing"
	"carshare/internal/domain/wallet"
	"carshare/internal/middleware"
	jwtsvc "carshare/internal/pkg/jwt"
	"carshare/internal/pkg/logging"
	"carshare/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("info").WithError(err).Fatal("load config")
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect database")
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.WithError(err).Fatal("migrate database")
		}
	}

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)

	bookingRepo := repository.NewBookingRepository(db)
	carRepo := repository.NewCarRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	walletService := wallet.NewService(db)
	walletHandler := wallet.NewHandler(walletService)

	notificationService := notification.NewService(notification.NewRepository(db), logger)
	notificationHandler := notification.NewHandler(notificationService)

	rates := pricing.DefaultRates()
	rates.ServiceFeePercent = cfg.Pricing.ServiceFeePercent
	rates.TaxPercent = cfg.Pricing.TaxPercent
	rates.QuoteTTL = cfg.Pricing.QuoteTTL

	bookingService := booking.NewService(
		bookingRepo,
		carRepo,
		paymentRepo,
		walletService,
		notificationService,
		pricing.NewEngine(rates),
		logger,
		booking.WithStatusRetry(cfg.Booking.StatusRetryAttempts, cfg.Booking.StatusRetryDelay),
	)
	bookingHandler := booking.NewHandler(bookingService)

	paymentHandler := payment.NewHandler(payment.NewService(bookingRepo, paymentRepo, walletService))

	r := gin.New()
	r.Use(middleware.ErrorLogger(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(j))
		{
			bookingHandler.RegisterRoutes(protected)
			paymentHandler.RegisterProtectedRoutes(protected)
			walletHandler.RegisterRoutes(protected)
			notification.RegisterRoutes(protected, notificationHandler)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(j), middleware.AdminOnly())
		{
			walletHandler.RegisterAdminRoutes(admin)
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http server shutdown")
	}
}
