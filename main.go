package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/commerce-backend/common/logger"
	"github.com/storefront/commerce-backend/controllers"
	"github.com/storefront/commerce-backend/database"
	"github.com/storefront/commerce-backend/kafka"
	"github.com/storefront/commerce-backend/middleware"
	"github.com/storefront/commerce-backend/models"
	"github.com/storefront/commerce-backend/repository"
	"github.com/storefront/commerce-backend/routes"
	"github.com/storefront/commerce-backend/services"
	"go.uber.org/zap"
)

func main() {
	cfg := LoadConfig()

	logger.Initialize(cfg.Env)
	defer logger.Sync()
	log := logger.Log

	// Document store: catalog, cart, stock
	mongoClient, mongoDB, err := database.ConnectMongo(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal("mongo connection failed", zap.Error(err))
	}
	defer func() {
		if err := database.DisconnectMongo(mongoClient); err != nil {
			log.Error("mongo disconnect failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.EnsureCartIndexes(ctx, mongoDB); err != nil {
		log.Fatal("cart index creation failed", zap.Error(err))
	}
	cancel()

	// Relational store: order ledger
	gormDB, err := database.ConnectPostgres(log, &models.Order{}, &models.OrderItem{})
	if err != nil {
		log.Fatal("postgres connection failed", zap.Error(err))
	}

	// Cache is optional; without Redis product reads just skip the cache.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		defer redisClient.Close()
	}

	// Event publishing is optional and best-effort.
	var producer kafka.ProducerAPI
	if len(cfg.KafkaBrokers) > 0 {
		p := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer p.Close()
		producer = p
	}

	productRepo := repository.NewMongoProductRepository(mongoDB)
	cartRepo := repository.NewMongoCartRepository(mongoDB)
	orderRepo := repository.NewGormOrderRepository(gormDB)

	cartService := services.NewCartService(cartRepo, productRepo, log)
	orderService := services.NewOrderService(orderRepo, cartRepo, productRepo, producer, log)
	reportService := services.NewReportService(orderRepo, productRepo)

	cache := controllers.NewCacheManager(redisClient, log)
	productController := controllers.NewProductController(productRepo, cache, log)
	cartController := controllers.NewCartController(cartService, log)
	orderController := controllers.NewOrderController(orderService, log)
	reportController := controllers.NewReportController(reportService, log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.RateLimitMiddleware())

	routes.RegisterRoutes(router, productController, cartController, orderController, reportController)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("storefront backend listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
}
