package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/peerlearn/peerlearn/internal/cache"
	"github.com/peerlearn/peerlearn/internal/config"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/events"
	"github.com/peerlearn/peerlearn/internal/handler"
	"github.com/peerlearn/peerlearn/internal/hub"
	"github.com/peerlearn/peerlearn/internal/idgen"
	"github.com/peerlearn/peerlearn/internal/repository"
	"github.com/peerlearn/peerlearn/internal/service"
	"github.com/peerlearn/peerlearn/pkg/database"
	"github.com/peerlearn/peerlearn/pkg/jwt"
	pkglog "github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/middleware"
	"github.com/peerlearn/peerlearn/pkg/pubsub"
	"github.com/peerlearn/peerlearn/pkg/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: "peerlearn",
	})
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Relational store
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, domain.AllModels()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// Document store
	accounts, closeAccounts := newAccountRepository(ctx, cfg.Mongo, logger)
	defer closeAccounts()

	// Redis backs the profile cache, realtime fan-out and token revocation when configured.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = cache.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	var profileCache cache.ProfileCache = cache.NewMemoryProfileCache(cfg.Cache.Prefix)
	var revocations jwt.RevocationStore = jwt.NewMemoryRevocationStore()
	if redisClient != nil {
		profileCache = cache.NewRedisProfileCache(redisClient, cfg.Cache.Prefix)
		revocations = jwt.NewRedisRevocationStore(redisClient, cfg.JWT.RevocationPrefix)
	}
	defer profileCache.Close()

	bus, err := newPubSub(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pubsub")
	}
	defer bus.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("pubsub initialized")

	// Optional chat event stream
	var producer events.Producer = events.NopProducer{}
	if cfg.Kafka.Enabled() {
		stream, err := events.NewChatStream(events.StreamConfig{
			Brokers:    cfg.Kafka.Brokers,
			Topic:      cfg.Kafka.Topic,
			Partitions: cfg.Kafka.Partitions,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize chat event stream")
		}
		producer = stream
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("chat event stream connected")
	}
	defer producer.Close()

	media, err := storage.New(ctx, storage.Config{
		Driver: cfg.Storage.Driver,
		Local:  storage.LocalConfig{BasePath: cfg.Storage.BasePath, URLPrefix: cfg.Storage.URLPrefix},
		S3: storage.S3Config{
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
			PublicURL:       cfg.Storage.S3.PublicURL,
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	tokens, err := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessDuration, cfg.JWT.RefreshDuration, cfg.JWT.Issuer, revocations)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize token manager")
	}

	// Repositories
	ids := idgen.NewULIDGenerator()
	profiles := repository.NewGormProfileRepository(db)
	chatRepo := repository.NewGormChatRepository(db)
	messageRepo := repository.NewGormMessageRepository(db, ids)
	groupRepo := repository.NewGormGroupRepository(db)

	// Services
	directory := service.NewDirectoryService(profiles, profileCache, cfg.Cache.TTL)
	notifier := service.NewNotifier(bus, producer)
	chats := service.NewChatService(chatRepo, messageRepo, profiles, directory, notifier)
	groups := service.NewGroupService(groupRepo, messageRepo, notifier)
	svcs := handler.Services{
		Accounts: service.NewAccountService(accounts, profiles, tokens, directory, media, service.AccountConfig{
			BannedWords: cfg.Onboarding.BannedWords,
		}),
		Onboarding: service.NewOnboardingService(accounts, profiles, directory, cfg.Onboarding.BannedWords),
		Directory:  directory,
		Chats:      chats,
		Groups:     groups,
		Uploads: service.NewUploadService(media, ids, service.UploadConfig{
			MaxBytes:     cfg.Upload.MaxBytes,
			MaxDimension: cfg.Upload.MaxDimension,
			JPEGQuality:  cfg.Upload.JPEGQuality,
		}),
	}

	// Realtime hub
	wsHub := hub.NewHub()
	go wsHub.Run(ctx)
	if err := wsHub.Listen(ctx, bus); err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe hub to conversation events")
	}

	authMiddleware := middleware.NewAuthMiddleware(tokens)
	httpHandler := handler.NewHandler(svcs, authMiddleware, handler.CookieConfig{
		MaxAge: cfg.Onboarding.CookieMaxAge,
		Secure: cfg.Onboarding.CookieSecure,
	}, cfg.Upload.MaxBytes)
	wsHandler := handler.NewWSHandler(wsHub, chats, groups, authMiddleware, cfg.WebSocket)

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if local, ok := media.(*storage.LocalStorage); ok && cfg.Storage.URLPrefix != "" {
		r.Static(cfg.Storage.URLPrefix, local.BasePath())
	}

	httpHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("peerlearn starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	cancel()

	logger.Info().Msg("peerlearn stopped")
}

// newAccountRepository connects to MongoDB, or falls back to the in-process
// repository when no URI is configured.
func newAccountRepository(ctx context.Context, cfg config.MongoConfig, logger zerolog.Logger) (repository.AccountRepository, func()) {
	if cfg.URI == "" {
		logger.Warn().Msg("mongo uri is empty, accounts are kept in memory")
		return repository.NewMemoryAccountRepository(), func() {}
	}

	client, err := repository.NewMongoClient(ctx, cfg.URI, cfg.Timeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}

	repo, err := repository.NewMongoAccountRepository(ctx, client.Database(cfg.Database), cfg.Collection)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize account repository")
	}
	logger.Info().Str("database", cfg.Database).Str("collection", cfg.Collection).Msg("mongodb connected")

	return repo, func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to disconnect mongodb")
		}
	}
}

// newPubSub builds the realtime bus. The redis driver shares the service's client.
func newPubSub(cfg *config.Config, redisClient *redis.Client) (pubsub.PubSub, error) {
	switch cfg.PubSub.Driver {
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis pubsub requires a redis client")
		}
		return pubsub.NewRedisPubSubWithClient(redisClient), nil
	default:
		pcfg := pubsub.DefaultConfig()
		pcfg.Driver = cfg.PubSub.Driver
		pcfg.Kafka.Brokers = cfg.Kafka.Brokers
		pcfg.Kafka.GroupID = cfg.Kafka.GroupID
		pcfg.Kafka.Partitions = cfg.Kafka.Partitions
		pcfg.Kafka.TopicPrefix = cfg.Kafka.TopicPrefix
		return pubsub.NewPubSub(pcfg)
	}
}
