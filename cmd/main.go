package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"google.golang.org/grpc"

	"github.com/weiawesome/wes-io-chat/internal/cache"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/dispatcher"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/handler"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/persist"
	"github.com/weiawesome/wes-io-chat/internal/presence"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/internal/rpc"
	"github.com/weiawesome/wes-io-chat/internal/service"
	pkgconfig "github.com/weiawesome/wes-io-chat/pkg/config"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

func main() {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load .env")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting wes-io-chat")

	if cfg.OnLogLevelChange(func(level string) {
		pkglog.SetLevel(level)
		l := pkglog.L()
		l.Info().Str("level", level).Msg("log level reloaded")
	}) {
		logger.Info().Msg("watching config file for log level changes")
	}

	// Database
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	users := repository.NewGormUserRepository(db)
	chats := repository.NewGormChatRepository(db)
	messages := repository.NewGormMessageRepository(db)
	requests := repository.NewGormRequestRepository(db)

	// User cache
	var userCache cache.UserCache = cache.NoopUserCache{}
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisUserCache(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis cache")
		}
		userCache = redisCache
		logger.Info().Str("address", cfg.Redis.Address).Msg("user cache enabled")
	}
	defer userCache.Close()

	// Object storage
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	store := media.NewStore(objects, cfg.Upload.MaxFileSize, cfg.Upload.URLExpiry).WithAvatarSize(cfg.Upload.AvatarSize)

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, cfg.Admin.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	// Realtime core
	directory := presence.NewDirectory()
	wsHub := hub.NewHub()
	hubCtx, hubCancel := context.WithCancel(ctx)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		wsHub.Run(hubCtx)
	}()
	d := dispatcher.New(directory, wsHub)

	// Persistence gateway
	var (
		gateway      persist.Gateway = persist.NewDirectGateway(messages)
		bus          pubsub.PubSub
		consumerDone chan struct{}
	)
	consumerCtx, consumerCancel := context.WithCancel(ctx)
	if cfg.Persistence.Mode == config.PersistQueue {
		bus, err = pubsub.NewPubSub(cfg.PubSub)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create message queue")
		}
		gateway = persist.NewQueueGateway(bus, cfg.Persistence.Topic)

		consumer := persist.NewConsumer(bus, cfg.Persistence.Topic, messages,
			func(ctx context.Context, record persist.MessageRecord, err error) {
				d.Notify(domain.EventError, []string{record.SenderID}, domain.ErrorPayload{
					Code:    domain.ErrCodePersistence,
					Message: "Failed to save message",
				})
			})
		consumerDone = make(chan struct{})
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(pkglog.WithLogger(consumerCtx, logger)); err != nil {
				logger.Error().Err(err).Msg("message consumer stopped")
			}
		}()
	}
	logger.Info().Str("mode", cfg.Persistence.Mode).Str("topic", cfg.Persistence.Topic).Msg("message persistence ready")

	// Services
	sessions := service.NewSessionService(directory, d, wsHub, gateway, cfg.WebSocket.PersistTimeout)
	authenticator := service.NewAuthenticator(tokens, users, userCache, cfg.Redis.CacheTTL)
	userSvc := service.NewUserService(users, chats, requests, store, tokens, d)
	chatSvc := service.NewChatService(chats, messages, users, store, d, cfg.Upload.MaxAttachments)
	adminSvc := service.NewAdminService(users, chats, messages, tokens, cfg.Admin.SecretKey)

	// gRPC notify API
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		grpcServer, err = rpc.StartServer(grpcAddr, d, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start grpc server")
		}
	}

	// REST
	origins := cfg.CORS.AllowedOrigins()
	authMiddleware := middleware.NewAuthMiddleware(tokens, cfg.Auth.CookieName, cfg.Admin.CookieName)

	r := gin.New()
	r.Use(gin.Recovery(), pkglog.GinMiddleware(logger), cors.New(corsConfig(origins)))
	api := r.Group("/api/v1")
	handler.NewUserHandler(userSvc, authMiddleware, handler.CookieConfig{
		Name:   cfg.Auth.CookieName,
		MaxAge: cfg.Auth.TokenTTL,
		Secure: cfg.Auth.CookieSecure,
	}).RegisterRoutes(api)
	handler.NewChatHandler(chatSvc, authMiddleware).RegisterRoutes(api)
	handler.NewAdminHandler(adminSvc, authMiddleware, handler.CookieConfig{
		Name:   cfg.Admin.CookieName,
		MaxAge: cfg.Admin.TokenTTL,
		Secure: cfg.Auth.CookieSecure,
	}).RegisterRoutes(api)

	// Root router: socket, health and static files, then the REST engine
	wsHandler := handler.NewWSHandler(authenticator, sessions, cfg.WebSocket, cfg.Auth.CookieName, origins)
	httpLog := pkglog.HTTPMiddleware(logger, "/health")

	router := mux.NewRouter()
	router.Handle(cfg.WebSocket.Path, httpLog(http.HandlerFunc(wsHandler.HandleWebSocket)))
	router.Handle("/health", httpLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))).Methods("GET")
	if local, ok := objects.(*storage.LocalStorage); ok {
		prefix := strings.TrimSuffix(local.PublicPath(), "/") + "/"
		router.PathPrefix(prefix).Handler(httpLog(http.StripPrefix(prefix, http.FileServer(http.Dir(local.BasePath())))))
	}
	router.PathPrefix("/").Handler(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", addr).Str("socket_path", cfg.WebSocket.Path).Msg("wes-io-chat listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down wes-io-chat")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil { // 1. stop accepting requests
			logger.Error().Err(err).Msg("server shutdown error")
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}

		hubCancel() // 2. close every socket
		<-hubDone

		sessions.Wait() // 3. let in-flight messages reach the gateway

		consumerCancel() // 4. drain the queue consumer
		if consumerDone != nil {
			<-consumerDone
		}
		if bus != nil {
			if err := bus.Close(); err != nil {
				logger.Warn().Err(err).Msg("message queue close error")
			}
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("wes-io-chat stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowOriginFunc = func(string) bool { return true }
	} else {
		c.AllowOrigins = origins
	}
	return c
}
