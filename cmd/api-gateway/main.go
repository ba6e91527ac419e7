package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/credchain-api/api/swagger"
	"github.com/noah-isme/credchain-api/internal/auth"
	"github.com/noah-isme/credchain-api/internal/chain"
	"github.com/noah-isme/credchain-api/internal/content"
	"github.com/noah-isme/credchain-api/internal/handler"
	"github.com/noah-isme/credchain-api/internal/middleware"
	"github.com/noah-isme/credchain-api/internal/repository"
	"github.com/noah-isme/credchain-api/internal/service"
	"github.com/noah-isme/credchain-api/pkg/cache"
	"github.com/noah-isme/credchain-api/pkg/config"
	"github.com/noah-isme/credchain-api/pkg/database"
	"github.com/noah-isme/credchain-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/credchain-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/credchain-api/pkg/middleware/requestid"
)

// @title CredChain API
// @version 0.1.0
// @description Credential verification backend bridging the institution registry and transcript contracts
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	provider := chain.NewRPCProvider(cfg.Chain, logr)
	provider.SetObserver(metrics)
	registry := chain.NewRegistry(provider, cfg.Chain, logr)
	transcripts := chain.NewTranscripts(provider, cfg.Chain, logr)
	wallet := chain.NewSessionManager(provider, cfg.Chain, logr)
	pinata := content.NewPinataClient(cfg.Pinata, logr)
	pinata.SetObserver(metrics)
	policy := auth.NewAdminPolicy(cfg.Admin.Address)

	institutionRepo := repository.NewInstitutionRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	intentRepo := repository.NewIntentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	readCache := service.NewInstrumentedCache(cacheRepo, metrics, logr)

	sessionSvc := service.NewSessionService(wallet, policy, readCache, cfg.JWT, logr)
	institutionSvc := service.NewInstitutionService(institutionRepo, intentRepo, registry, policy, readCache, cfg.Chain.ReadCacheTTL, validate, logr)
	credentialSvc := service.NewCredentialService(credentialRepo, institutionRepo, intentRepo, transcripts, pinata, policy, readCache, cfg.Chain.ReadCacheTTL, cfg.Pinata.MaxFileSizeBytes, validate, logr)
	reconcileSvc := service.NewReconcileService(intentRepo, institutionRepo, credentialRepo, cfg.Reconcile, logr)

	if cfg.Reconcile.Enabled {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		reconcileSvc.Start(ctx, 5*time.Minute)
		defer reconcileSvc.Stop()
	}

	sessionHandler := handler.NewSessionHandler(sessionSvc)
	institutionHandler := handler.NewInstitutionHandler(institutionSvc)
	credentialHandler := handler.NewCredentialHandler(credentialSvc, cfg.Pinata.MaxFileSizeBytes)
	reconcileHandler := handler.NewReconcileHandler(reconcileSvc, policy)
	metricsHandler := handler.NewMetricsHandler(metrics, db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	sessionGroup := api.Group("/session")
	{
		sessionGroup.POST("/connect", sessionHandler.Connect)
		sessionGroup.GET("", middleware.Session(sessionSvc), sessionHandler.Current)
		sessionGroup.POST("/disconnect", middleware.Session(sessionSvc), sessionHandler.Disconnect)
	}

	institutions := api.Group("/institutions")
	{
		institutions.GET("", institutionHandler.List)
		institutions.GET("/stats", institutionHandler.Stats)
		institutions.GET("/:id", institutionHandler.Get)
		institutions.GET("/chain/:address", institutionHandler.OnChainDetails)

		protected := institutions.Group("", middleware.Session(sessionSvc))
		protected.POST("", institutionHandler.Register)
		protected.POST("/chain/:address/verify", institutionHandler.VerifyOnChain)
		protected.POST("/:id/suspend", institutionHandler.Suspend)
		protected.POST("/:id/reactivate", institutionHandler.Reactivate)
	}

	credentials := api.Group("/credentials")
	{
		credentials.GET("", credentialHandler.List)
		credentials.GET("/verify/:cid", credentialHandler.Verify)
		credentials.GET("/chain/count", credentialHandler.OnChainCount)
		credentials.GET("/chain/student/:address", credentialHandler.ListOnChainByStudent)
		credentials.GET("/chain/:id", credentialHandler.GetOnChain)
		credentials.GET("/:id", credentialHandler.Get)
		if cfg.Exports.Enabled {
			credentials.GET("/register/:address/export", credentialHandler.ExportRegister)
		}

		protected := credentials.Group("", middleware.Session(sessionSvc))
		protected.POST("", credentialHandler.Issue)
		protected.POST("/:id/revoke", credentialHandler.Revoke)
	}

	reconcile := api.Group("/reconcile", middleware.Session(sessionSvc))
	{
		reconcile.GET("/pending", reconcileHandler.Pending)
		reconcile.POST("", reconcileHandler.RunAll)
		reconcile.POST("/:id", reconcileHandler.Run)
	}

	snapshot := api.Group("/system", middleware.Session(sessionSvc))
	{
		snapshot.GET("/metrics", metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "chain_id", cfg.Chain.ChainID)
	if err := r.Run(addr); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
