package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "partnerhub/docs"
	"partnerhub/internal/config"
	"partnerhub/internal/handlers"
	"partnerhub/internal/logger"
	"partnerhub/internal/models"
	"partnerhub/internal/realtime"
	"partnerhub/internal/repositories"
	"partnerhub/internal/routes"
	"partnerhub/internal/services"
	"partnerhub/internal/utils"
	"partnerhub/internal/validation"
)

type App struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *sql.DB
	hub    *realtime.Hub
	router *gin.Engine
}

// OpenDB opens the postgres pool and checks it answers.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	hub := realtime.NewHub(cfg.Server.CORSOrigins, log.Named("realtime"))
	router, err := NewRouter(ctx, cfg, db, hub, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &App{cfg: cfg, log: log, db: db, hub: hub, router: router}, nil
}

// NewRouter wires repositories, services and handlers onto a gin engine.
// New partnership notifications are pushed through hub.
func NewRouter(ctx context.Context, cfg *config.Config, db *sql.DB, hub *realtime.Hub, log *zap.Logger) (*gin.Engine, error) {
	// === Repos ===
	verificationRepo := repositories.NewVerificationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	categoryRepo := repositories.NewCategoryRepository(db)
	storeRepo := repositories.NewStoreRepository(db)
	postRepo := repositories.NewPostRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	couponRepo := repositories.NewCouponRepository(db)

	// === Transports ===
	emailService := services.NewEmailService(cfg.Email, log.Named("email"))
	sms := utils.NewSolapiClient(
		cfg.SMS.APIKey,
		cfg.SMS.APISecret,
		cfg.SMS.Sender,
		cfg.SMS.BaseURL,
		cfg.SMS.DryRun,
		log.Named("sms"),
	)

	// === Verification registries ===
	verifyLog := log.Named("verify")
	phoneCodes := services.NewRegistry(verificationRepo, sms, services.Policy{
		Channel:        models.ChannelPhone,
		Send:           services.AccumulatingSend,
		Reverify:       services.IdempotentReverify,
		Window:         cfg.Verification.PhoneWindow,
		MaxSends:       cfg.Verification.MaxSendsPerWindow,
		ThrottleWindow: cfg.Verification.ThrottleWindow,
	}, verifyLog, services.WithMessage(func(code string) string {
		return "[partnerhub] verification code: " + code
	}))
	emailCodes := services.NewRegistry(verificationRepo, emailService, services.Policy{
		Channel:        models.ChannelEmail,
		Send:           services.ExclusiveSend,
		Reverify:       services.RejectReverify,
		Window:         cfg.Verification.EmailWindow,
		MaxSends:       cfg.Verification.MaxSendsPerWindow,
		ThrottleWindow: cfg.Verification.ThrottleWindow,
	}, verifyLog, services.WithSendGuard(services.EmailNotRegistered(userRepo)))

	// === Services ===
	v := validation.New()
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
	userService := services.NewUserService(userRepo, emailCodes, authService, emailService, v, services.AccountSettings{
		SignupWindow: cfg.Verification.SignupWindow,
		RefreshTTL:   cfg.Auth.RefreshTTL,
	}, log.Named("auth"))
	resetService := services.NewPasswordResetService(userRepo, resetRepo, emailService, authService, v,
		cfg.Email.FrontendURL, cfg.Auth.ResetTTL, log.Named("password-reset"))
	storageService, err := services.NewStorageService(ctx, cfg.Storage, v, log.Named("storage"))
	if err != nil {
		return nil, err
	}
	storeService := services.NewStoreService(storeRepo, categoryRepo, postRepo, notificationRepo, v, log.Named("stores"))
	postService := services.NewPostService(postRepo, categoryRepo, v, log.Named("posts"))
	notificationService := services.NewNotificationService(notificationRepo, postRepo, v, log.Named("notifications"),
		services.WithPublisher(hub))
	couponService := services.NewCouponService(couponRepo, storeRepo, phoneCodes, v, services.CouponSettings{
		ValidFor:    cfg.Coupons.ValidFor,
		PhoneWindow: cfg.Coupons.PhoneWindow,
	}, log.Named("coupons"))

	// === Gin ===
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(logger.RequestID())
	router.Use(logger.GinMiddleware(log))
	router.Use(logger.Recovery(log))
	router.Use(corsMiddleware(cfg.Server.CORSOrigins))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/healthz", healthHandler(db))

	routes.SetupRoutes(router, routes.Handlers{
		Auth:          handlers.NewAuthHandler(userService, resetService, storageService),
		Posts:         handlers.NewPostHandler(postService, storageService),
		Stores:        handlers.NewStoreHandler(storeService),
		Coupons:       handlers.NewCouponHandler(couponService),
		Notifications: handlers.NewNotificationHandler(notificationService, hub),
	}, authService)

	return router, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server...")
	a.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.log.Info("Server exited gracefully")
	return nil
}

func (a *App) Close() error {
	return a.db.Close()
}

func healthHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "database unavailable", "data": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "ok", "data": nil})
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := map[string]struct{}{}
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowed[origin]; ok {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, "+logger.RequestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
