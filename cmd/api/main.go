package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/text/language"

	"github.com/noah-isme/backend-configurator/internal/catalog"
	"github.com/noah-isme/backend-configurator/internal/common"
	"github.com/noah-isme/backend-configurator/internal/config"
	"github.com/noah-isme/backend-configurator/internal/health"
	"github.com/noah-isme/backend-configurator/internal/lock"
	"github.com/noah-isme/backend-configurator/internal/obs"
	"github.com/noah-isme/backend-configurator/internal/pricing"
	"github.com/noah-isme/backend-configurator/internal/ratelimit"
	"github.com/noah-isme/backend-configurator/internal/resilience"
	"github.com/noah-isme/backend-configurator/internal/saved"
	"github.com/noah-isme/backend-configurator/internal/security"
	"github.com/noah-isme/backend-configurator/internal/session"
	"github.com/noah-isme/backend-configurator/internal/share"
)

const serviceName = "configurator-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var domainMetrics *obs.DomainMetrics
	var breakerMetrics *resilience.Metrics
	if cfg.MetricsEnabled {
		domainMetrics = obs.NewDomainMetrics(cfg.MetricsNamespace, nil)
		breakerMetrics = resilience.NewMetrics(cfg.MetricsNamespace, nil)
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	redisClient := mustRedis(startCtx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool = mustPool(startCtx, cfg, logger)
		defer pool.Close()
	}

	repo := mustCatalog(startCtx, ctx, cfg, redisClient, breakerMetrics, logger)
	engine := mustEngine(cfg, logger)

	codec := share.Codec{Catalog: repo}
	if cfg.ShareSecret != "" {
		signer, err := share.NewSigner([]byte(cfg.ShareSecret))
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise share signer")
		}
		codec.Signer = signer
	}

	var store saved.Store
	switch cfg.SavedStore {
	case config.SavedStorePostgres:
		store = saved.NewPostgresStore(pool)
	default:
		store = saved.NewRedisStore(redisClient, "saved")
	}

	manager := session.NewManager(session.ManagerConfig{
		Store:   session.NewStore(redisClient, "session", cfg.SessionTTL),
		Locker:  lock.Locker{R: redisClient, Prefix: "lock:session", TTL: cfg.LockTTL, RetryBackoff: cfg.LockRetryBackoff},
		Catalog: repo,
		Decoder: codec,
		Logger:  logger,
		Metrics: domainMetrics,
	})

	promoLimit := mustPromoLimit(cfg, redisClient, logger)
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	validate := common.NewValidator()

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Repository: repo})
	pricingHandler := pricing.NewHandler(pricing.HandlerConfig{
		Engine:    engine,
		Catalog:   repo,
		Validator: validate,
		Metrics:   domainMetrics,
	})
	sessionHandler := session.NewHandler(session.HandlerConfig{
		Manager:      manager,
		Engine:       engine,
		Saved:        store,
		StoreName:    cfg.SavedStore,
		Codec:        codec,
		ShareBaseURL: cfg.ShareBaseURL,
		Validator:    validate,
		Logger:       logger,
		Metrics:      domainMetrics,
		PromoLimit:   promoLimit,
		Idempotency:  idem.Middleware,
	})

	probes := map[string]health.Probe{
		"redis":   health.RedisProbe(redisClient),
		"catalog": health.CatalogProbe(repo),
	}
	if pool != nil {
		probes["db"] = health.DBProbe(pool)
	}
	healthHandler := health.Handler{Probes: probes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(cfg.MetricsBucketsMS)
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecureHeaders, HSTSMaxAge: cfg.HSTSMaxAge}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

		catalogHandler.Routes(v)

		v.With(promoLimit).Post("/quotes", pricingHandler.Quote)
		v.With(promoLimit).Post("/promos/apply", pricingHandler.ApplyPromo)
		v.Get("/shipping-methods", pricingHandler.ShippingMethods)
		v.Get("/payment-methods", pricingHandler.PaymentMethods)

		sessionHandler.Routes(v)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("saved_store", cfg.SavedStore).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Dur("grace", cfg.ShutdownGracePeriod).Msg("server shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func mustRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func mustPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

// mustCatalog builds the catalog chain: the embedded dataset or a remote
// source refreshed in the background, with a Redis read-through cache on top.
func mustCatalog(startCtx, runCtx context.Context, cfg *config.Config, client *redis.Client, metrics *resilience.Metrics, logger zerolog.Logger) catalog.Repository {
	var opts []catalog.StaticOption
	if cfg.Locale != "" {
		tag, err := language.Parse(cfg.Locale)
		if err != nil {
			logger.Warn().Err(err).Str("locale", cfg.Locale).Msg("ignore catalog collation")
		} else {
			opts = append(opts, catalog.WithCollation(tag))
		}
	}

	var source catalog.Repository
	if cfg.CatalogSourceURL == "" {
		static, err := catalog.NewDefault(opts...)
		if err != nil {
			logger.Fatal().Err(err).Msg("load embedded catalog")
		}
		source = static
	} else {
		fetcher := resilience.HTTPClient{
			Client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker: resilience.NewBreaker(resilience.BreakerConfig{
				Target:       "catalog",
				MinRequests:  cfg.BreakerMinRequests,
				FailureRatio: cfg.BreakerFailureRatio,
				OpenFor:      cfg.BreakerOpenFor,
			}, metrics, logger),
			MaxAttempts: cfg.OutboundMaxAttempts,
			BaseBackoff: cfg.OutboundBackoffBase,
			Jitter:      cfg.OutboundJitterPct,
			Timeout:     cfg.OutboundTimeout,
			MaxBody:     8 << 20,
		}
		remote := catalog.NewRemoteSource(fetcher, cfg.CatalogSourceURL, logger, opts...)
		if err := remote.Refresh(startCtx); err != nil {
			logger.Fatal().Err(err).Msg("load remote catalog")
		}
		go remote.Run(runCtx, cfg.CatalogRefreshInterval)
		source = remote
	}

	if cfg.CatalogCacheTTL <= 0 {
		return source
	}
	return catalog.NewCachedRepository(source, catalog.NewCache(client, cfg.CatalogCacheTTL), logger)
}

func mustEngine(cfg *config.Config, logger zerolog.Logger) *pricing.Engine {
	tables, err := pricing.DefaultTables()
	if cfg.PricingTablesPath != "" {
		tables, err = pricing.LoadTablesFile(cfg.PricingTablesPath)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.PricingTablesPath).Msg("load pricing tables")
	}
	if cfg.CurrencyCode != "" {
		tables.Currency = cfg.CurrencyCode
	}
	if cfg.Locale != "" {
		tables.Locale = cfg.Locale
	}
	engine, err := pricing.NewEngine(tables)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise pricing engine")
	}
	return engine
}

func mustPromoLimit(cfg *config.Config, client *redis.Client, logger zerolog.Logger) session.Middleware {
	rate, err := ratelimit.ParseRate(cfg.RateLimitPromo)
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimitPromo).Msg("parse promo rate limit")
	}
	store, err := ratelimit.NewRedisStore(client, "ratelimit:promo")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	return ratelimit.New(store, rate, logger).Middleware
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if strings.TrimSpace(user) == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
