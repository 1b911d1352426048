package main

import (
	"context"
	"database/sql"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"localdir/internal/adapters/geocode"
	natsad "localdir/internal/adapters/nats"
	"localdir/internal/adapters/observability"
	redisad "localdir/internal/adapters/redis"
	"localdir/internal/app"
	"localdir/internal/domain"
	"localdir/internal/shared"
	mysqlrepo "localdir/internal/storage/mysql"
)

const batchSize = 500

// geocoder fills in coordinates for listings that only carry a location
// string. One pass per run.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	log.Info().
		Str("geocoder", cfg.Geocoder).
		Int("workers", cfg.BackfillWorkers).
		Msg("geocoder backfill starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()

	var feed domain.ChangeFeed = redisad.NewFeed(rdb)
	if cfg.ChangeFeedDriver == "nats" {
		nf, err := natsad.Connect(cfg.NATSURL, "localdir-geocoder")
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect failed")
		}
		defer nf.Close()
		feed = nf
	}

	var resolver domain.Geocoder = geocode.NewTable(geocode.KnownCities)
	if cfg.Geocoder == "nominatim" {
		n, err := geocode.NewNominatim(cfg.NominatimBaseURL, "localdir-geocoder/1.0", cfg.GeocoderRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Nominatim client")
		}
		resolver = geocode.Chain{n, resolver}
	}

	svc := app.NewBackfillService(repo, resolver, redisad.New(rdb, cfg.CacheNS), feed)
	pending, err := svc.Pending(ctx, batchSize)
	if err != nil {
		log.Fatal().Err(err).Msg("listing unlocated listings failed")
	}

	workers := max(1, cfg.BackfillWorkers)
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var resolved, missed, failed atomic.Int64

	for _, l := range pending {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("stopping early")
			break
		}

		wg.Add(1)
		go func(l domain.Listing) {
			defer wg.Done()
			defer sem.Release(1)

			ok, err := svc.GeocodeListing(ctx, l)
			switch {
			case err != nil:
				failed.Add(1)
				log.Warn().Int64("id", l.ID).Str("location", l.Location).Err(err).Msg("geocode failed")
			case !ok:
				missed.Add(1)
				log.Info().Int64("id", l.ID).Str("location", l.Location).Msg("location not found")
			default:
				resolved.Add(1)
				log.Debug().Int64("id", l.ID).Msg("geocode ok")
			}
		}(l)
	}

	wg.Wait()
	log.Info().
		Int("pending", len(pending)).
		Int64("resolved", resolved.Load()).
		Int64("missed", missed.Load()).
		Int64("failed", failed.Load()).
		Msg("geocoder backfill completed")
}
