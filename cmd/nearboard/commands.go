package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nearboard/nearboard/internal/board"
	"github.com/nearboard/nearboard/internal/catalyst"
	"github.com/nearboard/nearboard/internal/config"
	"github.com/nearboard/nearboard/internal/gates"
	httpapi "github.com/nearboard/nearboard/internal/interfaces/http"
	"github.com/nearboard/nearboard/internal/provider"
	"github.com/nearboard/nearboard/internal/scan"
	"github.com/nearboard/nearboard/internal/scheduler"
	"github.com/nearboard/nearboard/internal/universe"
)

// app holds the wired component graph.
type app struct {
	cfg      *config.Config
	board    *board.Cache
	universe *universe.Builder
	scanner  *scan.Scanner
}

// newApp wires the provider, caches, gate evaluator, board, and scanner
// from config.
func newApp(cfg *config.Config) *app {
	var data provider.MarketData = provider.NewFinnhub(provider.FinnhubConfig{
		APIKey:         cfg.Provider.FinnhubAPIKey,
		BaseURL:        cfg.Provider.BaseURL,
		RequestTimeout: cfg.Provider.RequestTimeout,
		MaxRetries:     cfg.Provider.MaxRetries,
		RateLimitRPS:   cfg.Provider.RateLimitRPS,
		RateLimitBurst: cfg.Provider.RateLimitBurst,
	})

	var profiles provider.ProfileCache
	if cfg.Provider.RedisAddr != "" {
		profiles = provider.NewRedisProfileCache(cfg.Provider.RedisAddr, cfg.Provider.ProfileTTL)
		log.Info().Str("addr", cfg.Provider.RedisAddr).Msg("using Redis profile cache")
	} else {
		profiles = provider.NewMemoryProfileCache(cfg.Provider.ProfileTTL)
	}
	data = provider.WithProfileCache(data, profiles)

	classifier := catalyst.NewKeywordClassifier(cfg.Gates.HeadlineLookbackDays)
	evaluator := gates.NewEvaluator(data, classifier, cfg.Gates)

	boardCache := board.NewCache(cfg.Scan.StaleAfter)
	builder := universe.NewBuilder(data, cfg.Universe, cfg.Gates.PriceCeiling)
	scanner := scan.New(builder, evaluator, boardCache, cfg.Scan)

	return &app{cfg: cfg, board: boardCache, universe: builder, scanner: scanner}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and optional background scan loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				cfg.Server.Port = port
			}
			if every, _ := cmd.Flags().GetInt("scan-every"); every > 0 {
				cfg.Scan.EveryMinutes = every
			}

			a := newApp(cfg)

			handlers := httpapi.NewHandlers(a.board, a.scanner, a.universe)
			server, err := httpapi.NewServer(cfg.Server, handlers)
			if err != nil {
				return err
			}

			var sched *scheduler.Scheduler
			if cfg.Scan.EveryMinutes > 0 {
				sched = scheduler.New(a.scanner, a.universe,
					time.Duration(cfg.Scan.EveryMinutes)*time.Minute,
					cfg.Universe.FreshnessWindow)
				sched.Start()
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			}

			if sched != nil {
				sched.Stop()
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}

	cmd.Flags().Int("port", 0, "HTTP listen port (overrides config)")
	cmd.Flags().Int("scan-every", 0, "Run a scan every N minutes (0 disables)")
	return cmd
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan pass and print the resulting board",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a := newApp(cfg)

			var override []string
			if raw, _ := cmd.Flags().GetString("symbols"); raw != "" {
				override = strings.Split(raw, ",")
			}

			summary, err := a.scanner.Run(cmd.Context(), override)
			if err != nil {
				return err
			}

			snap := a.board.Snapshot(time.Now())
			out := map[string]interface{}{
				"summary": summary,
				"rows":    snap.Rows,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().String("symbols", "", "Comma-separated symbol override for this pass")
	return cmd
}

func newUniverseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "universe",
		Short: "Build and print the scan universe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a := newApp(cfg)

			force, _ := cmd.Flags().GetBool("force")
			u, err := a.universe.Build(cmd.Context(), force)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(u)
		},
	}

	cmd.Flags().Bool("force", false, "Force a rebuild ignoring the freshness window")
	return cmd
}
