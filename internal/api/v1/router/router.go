package router

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"bakery/internal/api/v1/handler"
	"bakery/internal/billing"
	"bakery/internal/cache"
	"bakery/internal/catalog"
	"bakery/internal/config"
	"bakery/internal/middleware"
	"bakery/internal/model"
	"bakery/internal/pubsub"
	"bakery/internal/repository"
	"bakery/internal/service"
	"bakery/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// App is the wired HTTP application and the resources it holds open.
type App struct {
	Handler http.Handler
	DB      *sql.DB
	Renewal *service.RenewalService

	closers []func() error
}

// Close releases the database, Redis and Pub/Sub clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// Handlers groups the v1 route handlers.
type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Catalog      *handler.CatalogHandler
	Credit       *handler.CreditHandler
	Subscription *handler.SubscriptionHandler
	Media        *handler.MediaHandler
	Webhook      *handler.WebhookHandler
}

// New opens the backing services named in cfg and builds the router.
// Redis, S3 and Pub/Sub are optional.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	db, err := repository.Open(ctx, cfg.DBConnectionString, cfg.Environment)
	if err != nil {
		return nil, err
	}
	app := &App{DB: db, closers: []func() error{db.Close}}
	logger.Info().Msg("Database connection successful")

	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}

	jsonCache := cache.NopCache()
	deduper := cache.NopDeduper()
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
		})
		if err != nil {
			return fail(err)
		}
		app.closers = append(app.closers, rdb.Close)
		jsonCache = cache.NewRedisCache(rdb, "bakery:")
		deduper = cache.NewRedisDeduper(rdb, cache.DefaultEventTTL)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis connected")
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; catalogue cache and webhook dedupe disabled")
	}

	var store storage.ObjectStore
	if cfg.StorageEnabled() {
		s3Client, err := storage.NewS3Client(ctx, storage.Config{
			Endpoint:  cfg.S3URL,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return fail(err)
		}
		store = storage.NewS3Store(s3Client, cfg.S3Bucket, logger)
	}

	var publisher pubsub.Publisher = pubsub.NopPublisher()
	usageTopic := ""
	if cfg.UsageEventsEnabled() {
		p, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		app.closers = append(app.closers, p.Close)
		publisher = p
		usageTopic = cfg.PubSubUsageTopic
	}

	fallback := catalog.Default()
	if cfg.CatalogFile != "" {
		if fallback, err = catalog.Load(cfg.CatalogFile); err != nil {
			return fail(err)
		}
	}

	userRepo := repository.NewUserRepo(db)
	subRepo := repository.NewSubscriptionRepo(db)
	creditRepo := repository.NewCreditRepo(db)
	mediaRepo := repository.NewMediaRepo(db)
	catalogRepo := repository.NewCatalogRepo(db)

	gateway := billing.NewStripeGateway(cfg.StripeSecretKey)
	freeCredits := model.CreditsFromFloat(cfg.FreePlanCredits)

	catalogSvc := service.NewCatalogService(catalogRepo, jsonCache, fallback, logger)
	userSvc := service.NewUserService(userRepo, subRepo, service.UserServiceConfig{
		JWTSecret:   cfg.JWTSecret,
		JWTTTL:      cfg.JWTTTL,
		FreeCredits: freeCredits,
	}, logger)
	subSvc := service.NewSubscriptionService(userRepo, subRepo, catalogSvc, gateway, logger)
	stripeSvc := service.NewStripeService(gateway, userRepo, subRepo, creditRepo, catalogSvc, cfg.StripePortalReturnURL, logger)
	creditSvc := service.NewCreditService(userRepo, subRepo, creditRepo, catalogSvc, gateway, store, publisher,
		service.CreditServiceConfig{UsageTopic: usageTopic}, logger)
	mediaSvc := service.NewMediaService(mediaRepo, store, logger)
	app.Renewal = service.NewRenewalService(creditRepo, freeCredits, logger)

	validate := handler.NewValidator()
	h := Handlers{
		Auth:         handler.NewAuthHandler(userSvc, validate, logger),
		User:         handler.NewUserHandler(userSvc, subSvc, logger),
		Catalog:      handler.NewCatalogHandler(catalogSvc, logger),
		Credit:       handler.NewCreditHandler(creditSvc, validate, logger),
		Subscription: handler.NewSubscriptionHandler(stripeSvc, subSvc, validate, logger),
		Media:        handler.NewMediaHandler(mediaSvc, validate, logger),
		Webhook:      handler.NewWebhookHandler(stripeSvc, deduper, cfg.StripeWebhookSecret, logger),
	}
	app.Handler = NewRouter(h, middleware.AuthMiddleware(cfg.JWTSecret, logger), db, logger)
	logger.Info().Msg("Router initialized")
	return app, nil
}

// NewRouter mounts the v1 API under /v1 and redirects the legacy /api prefix.
func NewRouter(h Handlers, authMw func(http.Handler) http.Handler, db *sql.DB, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(c.Handler)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", healthz(db, logger))

		h.Auth.RegisterRoutes(r, authMw)
		h.User.RegisterRoutes(r, authMw)
		h.Catalog.RegisterRoutes(r)
		h.Credit.RegisterRoutes(r, authMw)
		h.Subscription.RegisterRoutes(r, authMw)
		h.Media.RegisterRoutes(r, authMw)
		h.Webhook.RegisterRoutes(r)
	})

	// 308 preserves the method and body.
	r.Handle("/api/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := "/v1/" + chi.URLParam(r, "*")
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	}))

	return r
}

func healthz(db *sql.DB, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(ctx); err != nil {
			logger.Error().Err(err).Msg("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
