package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vegasq/datamart/internal/api"
	"github.com/vegasq/datamart/internal/auth"
	"github.com/vegasq/datamart/internal/config"
	"github.com/vegasq/datamart/internal/engine"
	"github.com/vegasq/datamart/internal/metrics"
	"github.com/vegasq/datamart/internal/reader"
)

func serveCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := cfg.ValidateServe(); err != nil {
				return err
			}
			log, err := cfg.Logger(cmd.Root().ErrWriter)
			if err != nil {
				return err
			}

			if info, err := os.Stat(cfg.DataDir); err != nil || !info.IsDir() {
				log.Warn().Str("data_dir", cfg.DataDir).Msg("data directory is not readable, every dataset request will fail")
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			rec := metrics.New(reg)

			tokens, err := auth.NewTokens([]byte(cfg.JWTSecret), cfg.TokenTTL)
			if err != nil {
				return err
			}
			provider := auth.NewFirebaseProvider(cfg.FirebaseAPIKey, cfg.IdentityURL,
				auth.WithProviderLogger(log))

			svc := engine.NewService(reader.NewStore(cfg.DataDir),
				engine.WithLogger(log),
				engine.WithMetrics(rec),
			)
			e := api.New(api.Options{
				Service:  svc,
				Auth:     auth.NewAuthenticator(provider, tokens, cfg.VerifyIDToken, log),
				Log:      log,
				Metrics:  rec,
				Gatherer: reg,
			})

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().
					Str("addr", cfg.ListenAddr).
					Str("data_dir", cfg.DataDir).
					Msg("listening")
				if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				return e.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
