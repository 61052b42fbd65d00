package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"restaurant-pos/internal/catalog"
	"restaurant-pos/internal/config"
	"restaurant-pos/internal/handlers"
	"restaurant-pos/internal/kafka"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/middleware"
	rediswrap "restaurant-pos/internal/redis"
	"restaurant-pos/internal/services"
	"restaurant-pos/internal/storage"

	"github.com/gin-gonic/gin"
)

// Global logger instance
var log *logger.Logger

func main() {
	log = logger.NewLogger()
	defer log.Close()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}

	log.LogProcess("STARTUP", "Restaurant POS starting up...")
	log.Info("SYSTEM", "Initializing components...")

	// Load configuration
	cfg := config.Load()
	log.Info("CONFIG", "Configuration loaded successfully")

	log.LogProcess("DATABASE", "Initializing MySQL database...")
	store, err := storage.NewMySQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to initialize MySQL: "+err.Error())
	}
	defer store.Close()
	log.LogDatabase("INIT", "mysql", "MySQL storage initialized successfully")

	// Initialize Kafka
	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.MockMode, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer kafkaProducer.Close()
	log.LogKafka("INIT", "producer", "Kafka producer initialized successfully")

	// Redis backs cart request deduplication
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	dedup := rediswrap.NewRedis(redisClient)
	log.LogProcess("SERVICE", "Redis connection configured")

	// Catalog service; without a base URL the in-memory catalog backs development
	var productCatalog catalog.Catalog
	if cfg.Catalog.BaseURL != "" {
		productCatalog = catalog.NewHTTPClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, log)
		log.LogProcess("CATALOG", "Catalog client pointed at "+cfg.Catalog.BaseURL)
	} else {
		log.Warn("CATALOG", "CATALOG_BASE_URL not set, using in-memory catalog")
		productCatalog = catalog.NewInMemoryCatalog()
	}

	// Initialize services
	tableService := services.NewTableService(store, log)
	log.LogProcess("SERVICE", "Table service initialized")
	orderService := services.NewOrderService(store, tableService, productCatalog, kafkaProducer, dedup, log)
	log.LogProcess("SERVICE", "Order service initialized")

	// Initialize handlers
	tableHandler := handlers.NewTableHandler(tableService)
	orderHandler := handlers.NewOrderHandler(orderService)
	log.LogProcess("HANDLER", "All handlers initialized")

	// Start kitchen event consumer in background unless mocked
	if !cfg.Kafka.MockMode {
		log.LogProcess("KAFKA", "Initializing kitchen consumer...")
		kitchenConsumer, err := kafka.NewKitchenConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		if err != nil {
			log.Fatal("KAFKA", "Failed to create kitchen consumer: "+err.Error())
		}
		defer kitchenConsumer.Close()

		go func() {
			log.LogKafka("START", "consumer", "Starting kitchen consumer goroutine")
			if err := kitchenConsumer.ConsumeKitchenEvents(context.Background(), orderService.ProcessKitchenEvent); err != nil {
				log.Error("KAFKA", "Consumer error: "+err.Error())
			}
		}()
	} else {
		log.Warn("KAFKA", "Mock mode enabled, kitchen consumer not started")
	}

	// Setup router
	router := setupRouter(tableHandler, orderHandler)
	log.LogProcess("ROUTER", "HTTP router configured")

	// Create server
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on port "+cfg.Server.Port)
		log.Info("STARTUP", "🚀 Restaurant POS is ready to accept requests!")
		log.Info("STARTUP", "📊 Health check available at: http://localhost"+cfg.Server.Port+"/health")
		log.Info("STARTUP", "🍽️ Table API available at: http://localhost"+cfg.Server.Port+"/api/v1/tables")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("SHUTDOWN", "Server forced to shutdown: "+err.Error())
	}

	log.Info("SHUTDOWN", "✅ Restaurant POS shutdown completed successfully")
}

func setupRouter(tableHandler *handlers.TableHandler, orderHandler *handlers.OrderHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(log))
	router.Use(middleware.BearerToken())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		log.LogAPI("GET", "/health", "200", "0ms")
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   "restaurant-pos",
			"version":   "1.0.0",
		})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Table registry and lifecycle
		tables := v1.Group("/tables")
		{
			tables.GET("", tableHandler.ListTables)
			tables.POST("", tableHandler.CreateTable)
			tables.GET("/:id", tableHandler.GetTable)
			tables.PUT("/:id", tableHandler.UpdateTable)
			tables.DELETE("/:id", tableHandler.DeleteTable)
			tables.PATCH("/:id/status", tableHandler.UpdateTableStatus)
			tables.POST("/:id/clear", tableHandler.ClearTable)
		}

		// Order lifecycle and cart
		orders := v1.Group("/orders")
		{
			orders.GET("", orderHandler.ListOrders)
			orders.POST("/table/:tableId", orderHandler.CreateTableOrder)
			orders.GET("/table/:tableId/current", orderHandler.GetCurrentTableOrder)
			orders.POST("/table/:tableId/cart", orderHandler.AddToCart)
			orders.POST("/table/:tableId/cart/remove", orderHandler.RemoveFromCart)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.PUT("/:id", orderHandler.UpdateOrder)
			orders.POST("/:id/items", orderHandler.AddOrderItem)
			orders.PATCH("/:id/status", orderHandler.UpdateOrderStatus)
			orders.PATCH("/:id/complete", orderHandler.CompleteOrder)
			orders.POST("/:id/complete-and-clear", orderHandler.CompleteAndClearTable)
			orders.POST("/:id/cancel", orderHandler.CancelOrder)
		}
	}

	log.LogProcess("ROUTER", "All routes registered successfully")
	return router
}
