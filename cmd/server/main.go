package main

import (
	"alcyxob/program-studio/internal/api"
	"alcyxob/program-studio/internal/completeness"
	"alcyxob/program-studio/internal/config"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/querycache"
	"alcyxob/program-studio/internal/realtime"
	"alcyxob/program-studio/internal/repository/mongo"
	"alcyxob/program-studio/internal/service"
	"alcyxob/program-studio/internal/storage"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// @title Program Studio API
// @version 1.0
// @description Creator dashboard backend: programs, content tree, exercise library and completeness flags.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting Program Studio server...", "address", cfg.Server.Address)

	policy, err := completeness.ParsePolicy(cfg.Completeness.EmptySessionPolicy, cfg.Completeness.FailurePolicy)
	if err != nil {
		log.Fatal("invalid completeness policy", "error", err)
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatal("could not connect to MongoDB", "error", err)
	}
	defer func() {
		log.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Error("failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Info("Database connection established.", "database", cfg.Database.Name)

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			log.Error("index creation finished with errors", "error", err)
			return
		}
		log.Info("Index creation process completed.")
	}()

	// --- Query Cache ---
	var cache querycache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		cache, err = querycache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.TTL)
		if err != nil {
			log.Fatal("could not connect to redis", "addr", cfg.Cache.RedisAddr, "error", err)
		}
	case "", "memory":
		cache = querycache.NewMemory(cfg.Cache.TTL)
	default:
		log.Fatal("unknown cache backend", "backend", cfg.Cache.Backend)
	}
	log.Info("Query cache ready.", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL)

	// --- Initialize Storage ---
	var fileStorage storage.FileStorage
	if cfg.S3.BucketName != "" {
		fileStorage, err = storage.NewS3Storage(context.Background(), cfg.S3, log)
		if err != nil {
			log.Fatal("failed to initialize S3 storage", "error", err)
		}
	} else {
		log.Warn("S3 bucket not configured; video uploads are disabled")
	}

	// --- Initialize Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	libraryRepo := mongo.NewMongoLibraryRepository(appDB)
	store := service.ContentStore{
		Programs:  mongo.NewMongoProgramRepository(appDB),
		Modules:   mongo.NewMongoModuleRepository(appDB),
		Sessions:  mongo.NewMongoSessionRepository(appDB),
		Exercises: mongo.NewMongoExerciseRepository(appDB),
		Sets:      mongo.NewMongoSetRepository(appDB),
	}

	// --- Initialize Services ---
	tracker := completeness.NewTracker(cfg.Completeness.ReconcileTimeout)
	defer tracker.Close()
	state := service.FlagState{Flags: completeness.NewFlagCache(), Tracker: tracker}

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	programService := service.NewProgramService(store, state, cache, log)
	exerciseService := service.NewExerciseService(store, state, cache, log)
	libraryService := service.NewLibraryService(libraryRepo, store, fileStorage, state, cache, log)
	evaluator := completeness.NewEvaluator(service.NewCompletenessSource(store), libraryService, policy)
	completenessService := service.NewCompletenessService(store, evaluator, state, cache, cfg.Completeness.PersistReconciled, log)

	watcher := realtime.NewWatcher(mongo.NewChangeStreamSource(appDB), programService, completenessService.HandleChange, log)

	// --- Initialize Gin Engine ---
	if cfg.Log.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(log))
	api.SetupRoutes(router, cfg.JWT.Secret, log, authService, programService, exerciseService, libraryService, completenessService, watcher)

	// --- Start HTTP Server ---
	// No WriteTimeout: program streams stay open.
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe error", "error", err)
		}
	}()
	log.Info("Server started.", "address", cfg.Server.Address)

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("Server exiting.")
}
