package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"localdir/internal/adapters/geocode"
	server "localdir/internal/adapters/http_server"
	"localdir/internal/adapters/identity"
	"localdir/internal/adapters/memfeed"
	natsad "localdir/internal/adapters/nats"
	"localdir/internal/adapters/objectstore"
	"localdir/internal/adapters/observability"
	redisad "localdir/internal/adapters/redis"
	"localdir/internal/app"
	"localdir/internal/domain"
	"localdir/internal/shared"
	mysqlrepo "localdir/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")
	if cfg.MigrateOnStart {
		if err := mysqlrepo.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		log.Info().Msg("migrations applied")
	}

	// deps
	repo := mysqlrepo.New(db)
	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()
	cache := redisad.New(rdb, cfg.CacheNS)

	feed, closeFeed, err := openFeed(cfg, rdb)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.ChangeFeedDriver).Msg("change feed unavailable")
	}
	defer closeFeed()

	geocoder, err := newGeocoder(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("geocoder init failed")
	}

	var images domain.ObjectStore
	if cfg.MinioEndpoint != "" {
		store, err := objectstore.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatal().Err(err).Msg("object storage init failed")
		}
		images = store
	}

	var verifier *identity.Verifier
	if cfg.JWTSecret != "" {
		verifier = identity.NewVerifier(cfg.JWTSecret)
	}

	var limiter *server.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = server.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 5*time.Minute)
		defer limiter.Stop()
	}

	// http
	srv := server.New(server.Options{Verifier: verifier, Limiter: limiter})
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Search:    app.NewSearchService(repo, geocoder),
		Q:         app.NewQueryService(repo, repo, repo, cache, cfg.CacheTTL),
		Community: app.NewCommunityService(repo, repo, repo, feed),
		Admin:     app.NewAdminService(repo, repo, repo, cache, feed, images),
		Reviews:   repo,
		Feed:      feed,
		Debounce:  cfg.SearchDebounce,
	})

	// no WriteTimeout: the stream endpoints are long-lived
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("feed", cfg.ChangeFeedDriver).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func openFeed(cfg shared.Config, rdb *redis.Client) (domain.ChangeFeed, func(), error) {
	switch cfg.ChangeFeedDriver {
	case "nats":
		f, err := natsad.Connect(cfg.NATSURL, "localdir-api")
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	case "memory":
		log.Warn().Msg("in-process change feed: live updates only reach clients of this instance")
		return memfeed.New(), func() {}, nil
	default:
		return redisad.NewFeed(rdb), func() {}, nil
	}
}

func newGeocoder(cfg shared.Config) (domain.Geocoder, error) {
	table := geocode.NewTable(geocode.KnownCities)
	if cfg.Geocoder != "nominatim" {
		return table, nil
	}
	n, err := geocode.NewNominatim(cfg.NominatimBaseURL, "localdir/1.0", cfg.GeocoderRPS)
	if err != nil {
		return nil, err
	}
	return geocode.Chain{n, table}, nil
}
