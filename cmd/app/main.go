package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/auth"
	"github.com/BuzzLyutic/taskboard/internal/config"
	"github.com/BuzzLyutic/taskboard/internal/handler"
	"github.com/BuzzLyutic/taskboard/internal/realtime"
	"github.com/BuzzLyutic/taskboard/internal/repo"
	"github.com/BuzzLyutic/taskboard/internal/service"
)

func main() {
	// Загрузка конфигурации
	cfg := config.Load()

	// Подключаем логгер
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилище задач
	var taskRepo repo.TaskRepository
	switch cfg.Store {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		taskRepo = repo.NewMemoryRepo()
	default:
		if err := repo.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal("Failed to migrate the Database", zap.Error(err))
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to Database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("Failed to ping the Database", zap.Error(err))
		}
		logger.Info("Successfully connected to the Database!")
		taskRepo = repo.NewTaskRepo(pool)
	}

	// Рассылка изменений: через Redis, если он настроен, иначе внутри процесса
	hub := realtime.NewHub(logger, cfg.EventBuffer)
	var publisher service.Publisher = hub
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Invalid REDIS_URL", zap.Error(err))
		}
		rc := redis.NewClient(opt)
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to ping Redis", zap.Error(err))
		}
		publisher = realtime.NewRedisPublisher(rc, cfg.RedisChannel)
		go realtime.Relay(ctx, logger, rc, cfg.RedisChannel, hub)
		logger.Info("Relaying change events through Redis", zap.String("channel", cfg.RedisChannel))
	}

	tokens := auth.NewTokens(cfg.SessionSecret, cfg.SessionTTL)
	var providers []auth.Provider
	if cfg.GoogleClientID != "" {
		google, err := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.PublicURL+"/auth/callback")
		if err != nil {
			logger.Fatal("Failed to set up Google sign-in", zap.Error(err))
		}
		providers = append(providers, google)
	} else {
		logger.Warn("GOOGLE_CLIENT_ID is not set, sign-in is disabled")
	}

	taskService := service.NewTaskService(taskRepo, publisher, logger)
	router := handler.NewRouter(handler.Handlers{
		Tasks:  handler.NewTaskHandler(taskService, logger),
		Stream: handler.NewStreamHandler(hub, logger),
		Auth:   handler.NewAuthHandler(tokens, cfg.BaseURL(), logger, providers...),
		Guard:  auth.NewMiddleware(tokens),
	}, logger)

	srv := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	cancel()
	hub.Close() // закрываем SSE-потоки, иначе Shutdown будет их ждать

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped successfully!")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
