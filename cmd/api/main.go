package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/albocarride/server/internal/auth"
	"github.com/albocarride/server/internal/config"
	"github.com/albocarride/server/internal/db"
	httphandler "github.com/albocarride/server/internal/http"
	"github.com/albocarride/server/internal/http/handlers"
	"github.com/albocarride/server/internal/identity"
	"github.com/albocarride/server/internal/middleware"
	"github.com/albocarride/server/internal/ratelimit"
	"github.com/albocarride/server/internal/repo"
	"github.com/albocarride/server/internal/sms"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env from CWD (env vars override)
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPool)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	otpRepo := repo.NewOtpRepo(database)
	accountRepo := repo.NewAccountRepo(database)

	var gateway sms.Gateway
	if cfg.DevMode {
		log.Println("OTP_DEV_MODE enabled: SMS delivery is disabled and codes are returned to clients")
		gateway = sms.NewLogGateway()
	} else {
		gateway = sms.NewTwilioGateway(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	}

	issueLimiter := newIssueLimiter(ctx, cfg)

	var idp identity.Provider
	var tokenVerifier middleware.TokenVerifier
	switch cfg.IdentityProvider {
	case config.IdentityZitadel:
		zp, err := identity.NewZitadelProvider(ctx, identity.ZitadelConfig{
			Domain:       cfg.ZitadelDomain,
			OrgID:        cfg.ZitadelOrgID,
			PAT:          cfg.ZitadelPAT,
			KeyPath:      cfg.ZitadelKeyPath,
			InsecurePort: cfg.ZitadelInsecurePort,
			SessionTTL:   cfg.AccessTokenTTL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Zitadel: %v", err)
		}
		idp = zp
	default:
		lp := identity.NewLocalProvider(accountRepo, identity.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL))
		idp = lp
		tokenVerifier = lp
	}

	// Initialize services
	accountService := auth.NewAccountService(accountRepo, idp, cfg.EmailDomain)
	otpService := auth.NewOtpService(otpRepo, gateway, issueLimiter, accountService, auth.OtpConfig{
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		AppName:     cfg.AppName,
		DevMode:     cfg.DevMode,
	})

	go auth.NewSweeper(otpRepo, cfg.OTPSweepInterval, cfg.OTPRetention).Run(ctx)

	// IP rate limiters: 10 per 10min for send-otp, 20 per 10min for verify-otp
	sendIPLimiter := ratelimit.NewMemoryLimiter(10*time.Minute, 10)
	verifyIPLimiter := ratelimit.NewMemoryLimiter(10*time.Minute, 20)
	go sendIPLimiter.Run(ctx, time.Hour)
	go verifyIPLimiter.Run(ctx, time.Hour)

	router := httphandler.NewRouter(httphandler.RouterDeps{
		OTPHandler:    handlers.NewOTPHandler(otpService),
		HealthHandler: handlers.NewHealthHandler(func(ctx context.Context) error { return db.Ping(ctx, database) }),
		SendLimiter:   sendIPLimiter,
		VerifyLimiter: verifyIPLimiter,
		TokenVerifier: tokenVerifier,
		Accounts:      accountRepo,
	})

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}
	log.Println("Server exited")
}

// newIssueLimiter uses Redis when configured so all instances share the per-phone budget
func newIssueLimiter(ctx context.Context, cfg *config.Config) ratelimit.Limiter {
	if cfg.RedisAddr == "" {
		l := ratelimit.NewMemoryLimiter(cfg.OTPIssueWindow, cfg.OTPIssueLimit)
		go l.Run(ctx, time.Hour)
		return l
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis at %s not reachable yet: %v", cfg.RedisAddr, err)
	}
	log.Printf("OTP issue limit backed by Redis at %s", cfg.RedisAddr)
	return ratelimit.NewRedisLimiter(client, "otp:issue:", cfg.OTPIssueWindow, cfg.OTPIssueLimit)
}
