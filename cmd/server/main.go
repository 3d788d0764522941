package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/wealthbridge/backend/docs"
	"github.com/wealthbridge/backend/internal/config"
	"github.com/wealthbridge/backend/internal/database"
	"github.com/wealthbridge/backend/internal/handlers"
	mW "github.com/wealthbridge/backend/internal/middleware"
	"github.com/wealthbridge/backend/internal/scheduler"
	"github.com/wealthbridge/backend/internal/services"
)

// @title WealthBridge Platform API
// @version 1.0
// @description API for the WealthBridge investment platform
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "WealthBridge Platform API"
	docs.SwaggerInfo.Description = "API for the WealthBridge investment platform"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	platformCfg := config.LoadPlatformConfig()

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	balanceService := services.NewBalanceService(db)
	ledgerService := services.NewLedgerService(db)
	referralService := services.NewReferralService(db, balanceService, platformCfg)
	fundingService := services.NewFundingService(db, balanceService, platformCfg)
	approvalService := services.NewApprovalService(db, balanceService, referralService)
	packageService := services.NewPackageService(db, balanceService)
	accrualService := services.NewAccrualService(db, balanceService)
	authService := services.NewAuthService(db, redisClient, referralService)
	adminService := services.NewAdminService(db, redisClient, balanceService, platformCfg)
	paymentMethodService := services.NewPaymentMethodService(db)
	qrService := services.NewQRService(db, redisClient, platformCfg)
	qrHandler := handlers.NewQRHandler(qrService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(mW.RateLimit(rate.Limit(10), 30))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for payment method logos
	r.Handle("/static/method-logos/*", http.StripPrefix("/static/method-logos/",
		mW.StaticFileServer("./static/method-logos")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/packages", packageService.ListPackages)
		r.Get("/payment-methods", paymentMethodService.ListActive)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			r.Get("/balances", balanceService.BalanceEnquiry)
			r.Get("/transactions", ledgerService.ListTransactions)
			r.Get("/transactions/reconcile", ledgerService.ReconcileUser)

			r.Post("/deposits", fundingService.CreateDeposit)
			r.Get("/deposits", fundingService.ListDeposits)
			r.Post("/withdrawals", fundingService.CreateWithdrawal)
			r.Get("/withdrawals", fundingService.ListWithdrawals)
			r.Delete("/withdrawals/{id}", fundingService.CancelWithdrawal)

			r.Post("/packages/{id}/purchase", packageService.Purchase)
			r.Get("/packages/mine", packageService.ListMine)

			r.Get("/referrals", referralService.ListReferrals)
			r.Get("/referrals/code", referralService.GetCode)

			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/confirm", qrHandler.ConfirmQR)

			// Admin endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.AdminMiddleware)

				r.Get("/admin/users", adminService.ListUsers)
				r.Post("/admin/users/{id}/balance", adminService.AdjustBalance)
				r.Put("/admin/users/{id}/status", adminService.SetUserStatus)
				r.Get("/admin/stats", adminService.GetStats)

				r.Get("/admin/requests", approvalService.ListRequests)
				r.Post("/admin/requests/{id}/approve", approvalService.Approve)
				r.Post("/admin/requests/{id}/reject", approvalService.Reject)

				r.Post("/admin/accruals/run", accrualService.RunAccruals)
				r.Get("/admin/reconcile/{userId}", ledgerService.ReconcileAccount)

				r.Get("/admin/payment-methods", paymentMethodService.ListAll)
				r.Post("/admin/payment-methods", paymentMethodService.Create)
				r.Put("/admin/payment-methods/{id}", paymentMethodService.Update)
			})
		})
	})

	// Start the accrual scheduler
	accrualScheduler := scheduler.NewScheduler(accrualService, platformCfg)
	accrualScheduler.Start()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	<-accrualScheduler.Stop().Done()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
