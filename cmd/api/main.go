package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/swapcash/swapcash-api/internal/config"
	"github.com/swapcash/swapcash-api/internal/domain/referral"
	"github.com/swapcash/swapcash-api/internal/domain/subscription"
	"github.com/swapcash/swapcash-api/internal/domain/user"
	"github.com/swapcash/swapcash-api/internal/domain/wallet"
	"github.com/swapcash/swapcash-api/internal/middleware"
	"github.com/swapcash/swapcash-api/internal/pkg/database"
	"github.com/swapcash/swapcash-api/internal/pkg/email"
	"github.com/swapcash/swapcash-api/internal/pkg/jwt"
	"github.com/swapcash/swapcash-api/internal/pkg/logger"
	"github.com/swapcash/swapcash-api/internal/pkg/payment"
	"github.com/swapcash/swapcash-api/internal/pkg/paystack"
	"github.com/swapcash/swapcash-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting SwapCash API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Payment gateway ----------
	providers := payment.NewProviderFactory()
	providers.Register("paystack", payment.NewPaystackProvider(paystack.Config{
		BaseURL:   cfg.PaystackBaseURL,
		SecretKey: cfg.PaystackSecretKey,
		Timeout:   30 * time.Second,
	}))
	gateway, err := providers.Get("paystack")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve payment provider")
	}

	// ---------- Notifications ----------
	var notifier email.Notifier
	if cfg.SendGridAPIKey != "" {
		emailService := email.NewService(email.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		})
		defer emailService.Close()
		notifier = emailService
	} else {
		log.Warn().Msg("SENDGRID_API_KEY not set, email notifications disabled")
	}

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	subscriptionRepo := subscription.NewRepository(db, redis)
	referralRepo := referral.NewRepository(db)

	// ---------- Services ----------
	subscriptionService := subscription.NewService(subscriptionRepo)
	referralService := referral.NewService(referralRepo)
	walletService := wallet.NewService(walletRepo, userRepo, gateway, subscriptionService, referralService, notifier, wallet.Config{
		Currency:             cfg.Currency,
		TransferFee:          parseFee(cfg.TransferFee),
		PlatformFeeAccountID: parseAccountID(cfg.PlatformFeeAccountID),
		CallbackURL:          cfg.FrontendURL + "/wallet/deposit/callback",
	})

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(walletService, cfg.PaystackSecretKey)
	subscriptionHandler := subscription.NewHandler(subscriptionService)
	referralHandler := referral.NewHandler(referralService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/wallet", walletHandler.Routes(authMiddleware))
		r.Mount("/subscriptions", subscriptionHandler.Routes(authMiddleware))
		r.Mount("/referrals", referralHandler.Routes(authMiddleware))
	})

	r.Mount("/webhooks", walletHandler.WebhookRoutes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func parseFee(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	fee, err := decimal.NewFromString(raw)
	if err != nil || fee.Sign() < 0 {
		log.Warn().Str("value", raw).Msg("Invalid TRANSFER_FEE, using 0")
		return decimal.Zero
	}
	return fee
}

func parseAccountID(raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Warn().Str("value", raw).Msg("Invalid PLATFORM_FEE_ACCOUNT_ID, transfer fees will not be credited")
		return uuid.Nil
	}
	return id
}
