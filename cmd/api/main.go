package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"astroconnect_go_backend/cmd/api/config"
	"astroconnect_go_backend/internal/api"
	"astroconnect_go_backend/internal/database"
	"astroconnect_go_backend/internal/metrics"
	"astroconnect_go_backend/internal/services"
	"astroconnect_go_backend/internal/utils/broker"
	"astroconnect_go_backend/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	genaiAPIKey := os.Getenv("GOOGLE_AI_STUDIO_API_KEY")
	if genaiAPIKey == "" {
		log.Fatal("GOOGLE_AI_STUDIO_API_KEY is not set in the environment")
	}

	ctx := context.Background()
	cfg := config.NewConfig()

	if err := database.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(genaiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}
	defer genaiClient.Close()

	redisDB := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			redisDB = parsed
		}
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     getEnvDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Wallet persistence degrades to defaults without Redis.
		logger.Warn().Err(err).Msg("redis unreachable, wallet state will not survive restarts")
	}

	registry := metrics.Registry(cfg.MetricsNamespace)
	scheduler := services.NewRealScheduler()
	messageFeed := broker.NewBroker()

	// Internal services
	kvStore := services.NewRedisKVStore(redisClient)
	chatServiceDB := services.NewChatServiceDB(database.DB, messageFeed)
	astrologerService := services.NewAstrologerService(database.DB, logger)

	walletService := services.NewWalletService(kvStore, scheduler, registry, logger, services.WalletConfig{
		InitialBalance: decimal.NewFromInt(cfg.InitialBalance),
		LowBalanceMark: decimal.NewFromInt(cfg.LowBalanceMark),
		TickInterval:   cfg.TickInterval,
		TicksPerMinute: cfg.TicksPerMinute,
		PersistTimeout: cfg.PersistTimeout,
	})

	chatStreamService := services.NewChatStreamService(
		chatServiceDB,
		messageFeed,
		scheduler,
		registry,
		logger,
		cfg.ConfirmTimeout,
	)

	sessionService := services.NewSessionService(
		walletService,
		chatStreamService,
		astrologerService,
		chatServiceDB,
		scheduler,
		registry,
		logger,
	)

	completer := services.NewGenAICompleter(genaiClient, cfg.GenAIModel)
	astroAIService := services.NewAstroAIService(completer, registry, logger)
	kundaliService := services.NewKundaliService(completer, registry, logger)
	predictionService := services.NewPredictionService()
	reportService := services.NewReportService()

	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173" // Default to your local frontend
	}

	// CORS middleware configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(allowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// WebSocket upgrader
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // TODO: Implement a more secure check in production
		},
	}

	wsHandler := wsocket.NewHandler(sessionService, astroAIService, upgrader, cfg.WSStatusInterval, scheduler, logger)

	api.SetupRoutes(r, sessionService, astrologerService, kundaliService, astroAIService, predictionService, reportService)

	r.GET("/ws", func(c *gin.Context) {
		wsHandler.HandleWebSocket(c.Writer, c.Request)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
