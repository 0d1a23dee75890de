//	@title			PixEdge API
//	@version		2.0
//	@description	Media hosting proxy: uploads are stored in a chat-based file service and served back through a proxying endpoint.
//
//	@host		localhost:8080
//	@BasePath	/api/v2
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**
//
//	@securityDefinitions.apikey	APIKeyAuth
//	@in							header
//	@name						X-API-Key

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/pixedge/service/internal/apikey"
	"github.com/pixedge/service/internal/auth"
	"github.com/pixedge/service/internal/config"
	"github.com/pixedge/service/internal/db"
	"github.com/pixedge/service/internal/kv"
	"github.com/pixedge/service/internal/media"
	appMiddleware "github.com/pixedge/service/internal/middleware"
	"github.com/pixedge/service/internal/ratelimit"
	"github.com/pixedge/service/internal/slug"
	"github.com/pixedge/service/internal/storage"
	"github.com/pixedge/service/internal/upload"
	"github.com/pixedge/service/internal/user"
	"github.com/pixedge/service/internal/webhook"

	_ "github.com/pixedge/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	kvClient, err := kv.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}

	var store storage.Store
	var notifier upload.Notifier
	switch cfg.StorageBackend {
	case "minio":
		s, err := storage.NewMinioStore(
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StorageUseSSL,
		)
		if err != nil {
			log.Fatalf("object storage init failed: %v", err)
		}
		store = s
	default:
		s, err := storage.NewTelegramStore(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.TelegramLogChatID)
		if err != nil {
			log.Fatalf("telegram storage init failed: %v", err)
		}
		store = s
		notifier = s
	}

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)

	keyRepo := apikey.NewRepository(pool)
	keySvc := apikey.NewService(keyRepo)

	webhookRepo := webhook.NewRepository(pool)
	webhookSvc := webhook.NewService(webhookRepo)

	codec := auth.NewCodec(cfg.JWTSecret)
	resolver := auth.NewResolver(codec, userDirectory{svc: userSvc}, keyDirectory{repo: keyRepo})

	var counterStore ratelimit.Store
	if kvClient != nil {
		counterStore = ratelimit.NewRedisStore(kvClient)
	}
	limiter := ratelimit.New(counterStore)

	mediaRepo := media.NewRepository(kvClient)
	allocator := slug.NewAllocator(mediaRepo)

	userHandler := user.NewHandler(userSvc, codec, cfg.IsProduction())
	keyHandler := apikey.NewHandler(keySvc)
	webhookHandler := webhook.NewHandler(webhookSvc)
	mediaHandler := media.NewHandler(mediaRepo, store)
	uploadHandler := upload.NewHandler(
		resolver, limiter, allocator, store, mediaRepo, webhookSvc, notifier,
		cfg.MaxUploadBytes, cfg.PublicBaseURL, cfg.StorageBackend,
	)

	requireAuth := appMiddleware.RequireAuth(resolver)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Media serving (proxied from the storage backend)
	r.Get("/i/{id}", mediaHandler.Serve)

	// API v1, the legacy anonymous surface
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", uploadHandler.Upload)
		r.Get("/info/{id}", mediaHandler.Info)
	})

	// API v2
	r.Route("/api/v2", func(r chi.Router) {
		r.Post("/upload", uploadHandler.Upload)
		r.Get("/stats", mediaHandler.Stats)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", userHandler.Login)
			r.With(requireAuth).Get("/me", userHandler.Me)
		})

		r.Route("/keys", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", keyHandler.List)
			r.Post("/", keyHandler.Create)
			r.Delete("/{id}", keyHandler.Revoke)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", webhookHandler.List)
			r.Post("/", webhookHandler.Create)
			r.Delete("/{id}", webhookHandler.Delete)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Minute,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s, storage=%s)", cfg.Port, cfg.AppEnv, cfg.StorageBackend)
		log.Printf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}

// userDirectory adapts the user service to the resolver's lookup interface.
type userDirectory struct {
	svc *user.Service
}

func (d userDirectory) FindUserByID(ctx context.Context, id string) (*auth.UserRecord, error) {
	u, err := d.svc.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &auth.UserRecord{ID: u.ID, Email: u.Email}, nil
}

// keyDirectory adapts the API key repository to the resolver's lookup interface.
type keyDirectory struct {
	repo *apikey.Repository
}

func (d keyDirectory) FindByHash(ctx context.Context, hash string) (*auth.APIKeyRecord, error) {
	k, err := d.repo.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &auth.APIKeyRecord{
		ID:        k.ID,
		UserID:    k.UserID,
		Prefix:    k.Prefix,
		RateLimit: k.RateLimit,
		Active:    k.IsActive,
	}, nil
}

func (d keyDirectory) TouchLastUsed(ctx context.Context, id string) error {
	return d.repo.TouchLastUsed(ctx, id)
}
