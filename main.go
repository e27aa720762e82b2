package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"outliers_server/backend"
	"outliers_server/backend/dynamo"
	"outliers_server/backend/memory"
	"outliers_server/backend/redisfeed"
	"outliers_server/backend/s3storage"
	"outliers_server/config"
	"outliers_server/controllers"
	"outliers_server/logger"
	"outliers_server/routes"
	"outliers_server/services"
	"outliers_server/session"
	"outliers_server/socket"
)

// backends bundles the collaborator implementations selected by config.
type backends struct {
	data    backend.DataService
	feed    backend.Feed
	storage backend.ObjectStorage
	close   func()
}

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		slog.Error("❌ failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("❌ server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("Initializing backend...", "driver", cfg.Backend.Driver)
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()
	log.Info("Backend initialized.")

	// Initialize Services
	notificationService := services.NewNotificationService(b.data)
	articleService := services.NewArticleService(b.data, b.storage, cfg.Storage.MediaBucket)
	commentService := services.NewCommentService(b.data, notificationService)
	socialService := services.NewSocialService(b.data, notificationService)
	groupService := services.NewGroupService(b.data, b.storage, notificationService, cfg.Storage.MediaBucket)
	dmService := services.NewDirectMessageService(b.data, b.storage, notificationService, cfg.Storage.MediaBucket)
	profileService := services.NewProfileService(b.data, b.storage, cfg.Storage.AvatarBucket, cfg.Storage.SignedURLTTL)
	searchService := &services.SearchService{Articles: articleService}

	verifier := session.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	sessions := session.NewManager(verifier, b.data, b.feed, profileService, notificationService, cfg.Notifications.PollInterval)
	defer sessions.Close()

	socketServer := socket.NewSocketServer(sessions)
	go socketServer.Serve()
	defer socketServer.Close()

	auth := controllers.NewAuth(sessions, cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	// Initialize the router
	r := mux.NewRouter()
	r.Use(controllers.Instrument)
	r.PathPrefix("/socket.io/").Handler(socketServer.Handler())

	// Register routes
	routes.RegisterRoutes(r)
	api := routes.APIRouter(r, auth)
	routes.RegisterSessionRoutes(api, auth)
	routes.RegisterChatRoutes(api)
	routes.RegisterArticleRoutes(api, articleService, commentService, searchService)
	routes.RegisterActionRoutes(api, socialService)
	routes.RegisterGroupRoutes(api, groupService)
	routes.RegisterDirectMessageRoutes(api, dmService)
	routes.RegisterUserProfileRoutes(api, profileService)
	routes.RegisterNotificationRoutes(api, notificationService)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("🚀 Starting server", "port", cfg.Server.Port)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openBackends(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backends, error) {
	buckets := []string{cfg.Storage.AvatarBucket, cfg.Storage.MediaBucket}

	if cfg.Backend.Driver == "memory" {
		feed := memory.NewFeed()
		storage := memory.NewStorage(cfg.Storage.PublicBaseURL)
		for _, name := range buckets {
			if err := storage.EnsureBucket(ctx, name); err != nil {
				return nil, err
			}
		}
		log.Warn("using the in-memory backend; data is lost on restart")
		return &backends{data: memory.NewStore(feed), feed: feed, storage: storage, close: func() {}}, nil
	}

	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable; realtime updates will fail until it is", "addr", cfg.Redis.Addr, "error", err)
	}
	feed := redisfeed.NewFeed(rdb)

	store := dynamo.NewStore(dynamo.NewClient(awsCfg), cfg.Backend.TablePrefix, feed)
	storage := s3storage.New(awsCfg, cfg.Storage.PublicBaseURL)

	if cfg.Backend.ProvisionOnStart {
		if err := store.Provision(ctx, 2*time.Minute); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		for _, name := range buckets {
			if err := storage.EnsureBucket(ctx, name); err != nil {
				_ = rdb.Close()
				return nil, err
			}
		}
	}
	if found, err := storage.ListBuckets(ctx); err != nil {
		log.Warn("could not list buckets", "error", err)
	} else {
		log.Info("object storage ready", "buckets", len(found))
	}

	return &backends{
		data:    store,
		feed:    feed,
		storage: storage,
		close:   func() { _ = rdb.Close() },
	}, nil
}
