package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/leasekeep/internal/config"
	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("leasekeep failed")
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "leasekeep",
		Short:         "Rental property management service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg.Log)
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(&cfg),
		newMigrateCmd(&cfg),
		newAccrueCmd(&cfg),
		newSweepCmd(&cfg),
	)
	return root
}

func setupLogging(c config.LogConfig) {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, notification dispatcher and scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return serve(ctx, *cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(ctx, cfg, a.services(), a.hub(), a.healthChecks(), a.gatherer())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error { return a.dispatcher.Run(gctx) })
	g.Go(func() error { return a.scheduler().Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

func newMigrateCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			store, err := openStore(ctx, *cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Migrate(ctx)
		},
	}
}

func newAccrueCmd(cfg **config.Config) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "accrue",
		Short: "Post the monthly rent charge to every active lease",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			p := domain.PeriodOf(time.Now())
			if period != "" {
				parsed, err := domain.ParsePeriod(period)
				if err != nil {
					return fmt.Errorf("--period: %w", err)
				}
				p = parsed
			}

			a, err := newApp(ctx, *cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.scheduler().Accrue(ctx, p)
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "billing month as YYYY-MM (default: current month)")
	return cmd
}

func newSweepCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire leases past their end date and stale pending payments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, *cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.scheduler().Sweep(ctx)
		},
	}
}
