package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"newsimpact/internal/app"
	"newsimpact/internal/cache"
	"newsimpact/internal/config"
	"newsimpact/internal/db"
	"newsimpact/internal/domain"
	"newsimpact/internal/pipeline"
	"newsimpact/internal/store"
	"newsimpact/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	openAppFunc    = openApp
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, closeApp := newRootCmd(os.Stdout)
	err := root.ExecuteContext(ctx)
	closeApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd returns the command tree and a func that releases whatever
// the executed command opened.
func newRootCmd(out io.Writer) (*cobra.Command, func()) {
	var envFile string
	var a *app.App
	var closeApp func()

	root := &cobra.Command{
		Use:           "newsimpact",
		Short:         "Collect financial news and score its market impact",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			if envFile != "" {
				if err := loadEnvFunc(envFile); err != nil {
					return fmt.Errorf("load env file: %w", err)
				}
			} else {
				loadEnvFunc()
			}
			var err error
			a, closeApp, err = openAppFunc(cmd.Context(), loadConfigFunc())
			return err
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default: .env when present)")

	get := func() *app.App { return a }
	root.AddCommand(newRunCmd(get), newResolveCmd(get), newExportCmd(get), newVersionCmd())
	return root, func() {
		if closeApp != nil {
			closeApp()
		}
	}
}

func newRunCmd(get func() *app.App) *cobra.Command {
	var force bool
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run collection, enrichment, resolution and analysis once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			window := since
			if window <= 0 {
				window = a.Lookback
			}
			result, runErr := a.Pipeline.Run(cmd.Context(), pipeline.RunOptions{
				Since: time.Now().Add(-window),
				Force: force,
			})
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if result.State == domain.RunFailed {
				return fmt.Errorf("run %s failed at %s: %s", result.RunID, result.FailedStage, result.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "recompute stages that already have output")
	cmd.Flags().DurationVar(&since, "since", 0, "collection window, e.g. 24h (default: COLLECT_LOOKBACK_HOURS)")
	return cmd
}

func newResolveCmd(get func() *app.App) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "resolve <company name>",
		Short: "Resolve a company name to a listed symbol",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			name := strings.Join(args, " ")
			resolve := a.Resolver.Resolve
			if refresh {
				resolve = a.Resolver.Refresh
			}
			m, err := resolve(cmd.Context(), name)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), m)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached mapping before resolving")
	return cmd
}

func newExportCmd(get func() *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Rewrite the enriched article and verdict snapshot files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			res, err := a.Exporter.Export(cmd.Context(), a.Store)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newsimpact %s\n", tracing.Version)
		},
	}
}

// openApp connects the optional backends and builds the pipeline. The
// returned func releases them.
func openApp(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	db.InitPostgres(ctx)

	var redisClient cache.RedisClient
	if err := cache.InitRedis(ctx); err != nil {
		log.Printf("Warning: %v, using in-memory caches", err)
	} else if cache.Client != nil {
		redisClient = cache.Client
	}

	tp, tracer, err := tracing.InitTracer(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("initialize tracer: %w", err)
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
		if cache.Client != nil {
			_ = cache.Client.Close()
		}
		db.Close()
	}

	var pool store.PgxPool
	if db.Pool != nil {
		pool = db.Pool
	}
	a, err := app.Build(ctx, cfg, tracer, pool, redisClient)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
