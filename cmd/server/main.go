package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/akorchak/callhub/internal/adapters/http"
	"github.com/akorchak/callhub/internal/adapters/rtc"
	sig "github.com/akorchak/callhub/internal/adapters/signal"
	"github.com/akorchak/callhub/internal/app"
	"github.com/akorchak/callhub/internal/app/orch"
	"github.com/akorchak/callhub/internal/app/sfu"
	"github.com/akorchak/callhub/internal/config"
	"github.com/akorchak/callhub/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	// Audit write-through is optional: no redis address, no store.
	var store storage.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping().Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, audit write-through disabled")
		} else {
			store = storage.NewAsyncStore(storage.NewRedisStore(rdb))
			defer func() {
				if err := store.Close(); err != nil {
					log.Error().Err(err).Msg("store close")
				}
			}()
		}
	}

	o := &orch.Orchestrator{
		Rooms:    app.NewRoomRegistry(),
		Registry: app.NewParticipantRegistry(),
		Relays:   sfu.NewRelayManager(),
		Engine:   rtc.NewFactory(cfg.STUNServers),
		Store:    store,
	}

	ctl := sig.NewController(o, cfg.ReadLimit, cfg.PingPeriod)
	o.Emitter = ctl

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("callhub server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
