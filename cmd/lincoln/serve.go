package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/lincoln/internal/agent"
	"github.com/ShayCichocki/lincoln/internal/agentlog"
	"github.com/ShayCichocki/lincoln/internal/api"
	"github.com/ShayCichocki/lincoln/internal/config"
	"github.com/ShayCichocki/lincoln/internal/logger"
	"github.com/ShayCichocki/lincoln/internal/notify"
	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/internal/orchestrator/policy"
	"github.com/ShayCichocki/lincoln/internal/queue"
	"github.com/ShayCichocki/lincoln/internal/server"
	"github.com/ShayCichocki/lincoln/internal/signals"
	"github.com/ShayCichocki/lincoln/internal/state"
	"github.com/ShayCichocki/lincoln/internal/state/pgstore"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

const shutdownTimeout = 30 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the queue, dispatcher and status API",
	Long: `Start the orchestrator.

Loads the persisted queue, starts one dispatch loop per agent kind and serves the
status API. Tasks that were running when the previous process died are marked failed.

The server stops on SIGINT/SIGTERM or 'lincoln stop'. Running tasks finish first.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.CheckCredentials(cfg); err != nil {
		return fmt.Errorf("%w: set ANTHROPIC_API_KEY or enable bedrock", err)
	}
	if serveAddr == "" {
		serveAddr = cfg.Server.Addr
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	store, err := openStore(cfg, log.Named("store"))
	if err != nil {
		return err
	}
	q, err := queue.New(ctx, store, queue.WithLogger(log.Named("queue")))
	if err != nil {
		store.Close()
		return err
	}
	defer q.Close()
	if ids := q.Recovered(); len(ids) > 0 {
		log.Warnw("tasks interrupted by previous shutdown were failed", "count", len(ids), "task_ids", ids)
	}

	apiKey, _ := config.GetAPIKey(cfg)
	completer, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Bedrock.Enabled,
		AWSRegion:     cfg.Bedrock.Region,
		AWSProfile:    cfg.Bedrock.Profile,
		Logger:        log.Named("model"),
	})
	if err != nil {
		return fmt.Errorf("create model client: %w", err)
	}
	invokers := agent.NewInvokers(completer, agent.WithMaxTokens(cfg.Anthropic.MaxTokens))

	sinkOpts := []agentlog.Option{agentlog.WithLogger(log.Named("agentlog"))}
	if cfg.Logging.OutputDir != "" {
		sinkOpts = append(sinkOpts, agentlog.WithOutputDir(cfg.Logging.OutputDir))
	}
	sink, err := agentlog.Open(cfg.ResolveAgentDir(), sinkOpts...)
	if err != nil {
		return err
	}
	defer sink.Close()

	notifier, err := notify.FromConfig(cfg.Notify, log.Named("notify"))
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}

	d := orchestrator.New(q, invokers, sink,
		orchestrator.WithPolicy(policy.FromDispatch(cfg.Dispatch)),
		orchestrator.WithNotifier(notifier),
		orchestrator.WithLogger(sink.Tee(log.Named("orchestrator"))),
	)

	watcher, err := signals.NewWatcher(cfg.Storage.SignalDir(), d, signals.WithLogger(log.Named("signals")))
	if err != nil {
		return err
	}
	defer watcher.Close()

	srv := server.New(server.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, q, d, log.Named("server"))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Listen(serveAddr) }()

	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	log.Infow("lincoln started",
		"addr", serveAddr,
		"backend", cfg.Storage.Backend,
		"model", completer.Model(),
		"bedrock", completer.UsesBedrock(),
		"pending", q.Counts()[models.TaskStatusPending],
	)

	var runErr error
	select {
	case runErr = <-runDone:
		// Stopped by signal file or interrupt.
	case err := <-serveErr:
		log.Errorw("status api failed", "error", err)
		d.Stop()
		runErr = errors.Join(err, <-runDone)
	}

	d.Events().Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("status api shutdown", "error", err)
	}

	in, out := completer.Tracker().Total()
	log.Infow("lincoln stopped", "model_calls", completer.Tracker().Calls(), "input_tokens", in, "output_tokens", out)
	return runErr
}

// openStore opens the configured queue backend.
func openStore(cfg *config.Config, log *zap.SugaredLogger) (queue.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		s, err := pgstore.Open(cfg.Storage.PostgresDSN, pgstore.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		path := cfg.Storage.ResolvedSQLitePath()
		db, err := state.OpenAndMigrate(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", path, err)
		}
		log.Infow("sqlite store opened", "path", path)
		return db, nil
	}
}
