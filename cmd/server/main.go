package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/adapters/httpapi"
	"github.com/huddlehq/huddle/internal/adapters/ws"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/hub"
	"github.com/huddlehq/huddle/internal/membership"
	"github.com/huddlehq/huddle/internal/membership/badgerstore"
	"github.com/huddlehq/huddle/internal/presence"
	"github.com/huddlehq/huddle/internal/registry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store, err := badgerstore.Open(cfg.StorePath, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open membership store")
	}
	defer store.Close()

	reg := registry.New()
	resolver := membership.NewResolver(store)
	tracker := presence.NewTracker()
	h := hub.New(reg, resolver, tracker)
	authenticator := auth.NewTokenAuthenticator(cfg.Secret)
	ctrl := ws.NewController(h, authenticator, cfg)

	r := httpapi.SetupRouter(cfg, ctrl, reg)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("huddle gateway started")
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
