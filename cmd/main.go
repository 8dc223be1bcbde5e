package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/whisper/internal/adapters/http/api"
	"github.com/okian/whisper/internal/adapters/schedule"
	app "github.com/okian/whisper/internal/app"
	"github.com/okian/whisper/internal/config"
	"github.com/okian/whisper/internal/domain/catalog"
	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/internal/domain/progression"
	"github.com/okian/whisper/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "whisper",
		Short:        "whisper - progression and social scoring engine",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newRecomputeCmd(), newHistoryCmd(), newTagsCmd(), newEvaluateCmd())
	return root
}

// setup loads configuration and initializes logging. Logs go to w so that
// one-shot commands keep stdout for their JSON output.
func setup(ctx context.Context, w io.Writer) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(w)); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with post workers and the recompute schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			log := logger.Get()

			svc := app.New(app.WithConfig(cfg), app.WithLogger(log.Named("service")))
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			defer svc.Stop()

			srv := newHTTPServer(cfg, svc, log)
			errCh := make(chan error, 1)
			go func() {
				log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			}
			log.Info(ctx, "shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "server shutdown failed", logger.Error(err))
			}
			log.Info(ctx, "server stopped")
			return nil
		},
	}
}

func newHTTPServer(cfg *config.Config, svc *app.Service, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(svc, api.WithLogger(log.Named("http")), api.WithMaxTopLimit(cfg.MaxTopLimit)).Register(mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func newRecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Recompute every social profile in the store once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cfg.StorePath == "" {
				logger.Get().Warn(ctx, "store_path is empty; recomputing an empty in-memory store")
			}

			svc := app.New(app.WithConfig(cfg), app.WithWorkers(false))
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			defer svc.Stop()

			report, runErr := runRecompute(ctx, cfg, svc)
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return runErr
		},
	}
}

// runRecompute fires the scheduled recompute job once, outside its schedule.
func runRecompute(ctx context.Context, cfg *config.Config, svc *app.Service) (app.BatchReport, error) {
	var report app.BatchReport
	sched := schedule.New(schedule.WithLogger(logger.Get().Named("scheduler")))
	stopScheduler := func() { _ = sched.Stop(context.WithoutCancel(ctx)) }
	defer stopScheduler()
	defer context.AfterFunc(ctx, stopScheduler)()

	spec := cfg.RecomputeSchedule
	if spec == "" {
		spec = "@daily"
	}
	err := sched.Add(app.RecomputeJob, spec, func(ctx context.Context) error {
		report = svc.RecomputeAllProfiles(ctx)
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d profiles failed", report.Failed, len(report.Items))
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, sched.RunNow(app.RecomputeJob)
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <player-id>",
		Short: "Print a player's stored profile snapshots, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("player id %q must be a positive integer", args[0])
			}
			ctx := cmd.Context()
			cfg, err := setup(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			svc := app.New(app.WithConfig(cfg), app.WithWorkers(false))
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			defer svc.Stop()

			hist, err := svc.ProfileHistory(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), hist)
		},
	}
}

func newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags <text>",
		Short: "Parse interaction tags from text and show their effects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}

			svc := app.New(app.WithConfig(cfg), app.WithCatalog(c))
			previews, err := svc.PreviewTags(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), previews)
		},
	}
}

type evaluateFlags struct {
	credits   int
	infection float64
	whisper   float64
	posts     int
	topics    int
	days      int
	status    string
}

func newEvaluateCmd() *cobra.Command {
	var f evaluateFlags
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one progression cycle on the given resources without touching the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			in := progression.Input{
				Resources: model.PlayerResources{
					Credits:       f.credits,
					InfectionReal: f.infection,
					WhisperReal:   f.whisper,
				},
				Activity:              model.ActivitySample{PostCount: f.posts, UniqueTopicCount: f.topics},
				DaysSinceRegistration: f.days,
			}
			if bonus := progression.ParseStatus(f.status); !bonus.IsZero() {
				in.Bonus = &bonus
			}
			return printJSON(cmd.OutOrStdout(), app.NewEngine(cfg.Progression).Evaluate(in))
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.credits, "credits", 0, "current credits")
	fl.Float64Var(&f.infection, "infection", 0, "current real infection")
	fl.Float64Var(&f.whisper, "whisper", 0, "current real whisper")
	fl.IntVar(&f.posts, "posts", 0, "posts in the window")
	fl.IntVar(&f.topics, "topics", 0, "unique topics in the window")
	fl.IntVar(&f.days, "days", 0, "days since registration")
	fl.StringVar(&f.status, "status", "", `status line, e.g. "К:+200 З:+13% Ш:+312%"`)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
