package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/askme/internal/api/handlers"
	"github.com/cloo-solutions/askme/internal/cli"
	"github.com/cloo-solutions/askme/internal/config"
	"github.com/cloo-solutions/askme/internal/jobs"
	"github.com/cloo-solutions/askme/internal/server"
	"github.com/cloo-solutions/askme/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the askme API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().String("dir", "", "Corpus directory (overrides ASKME_CORPUS_DIR)")
	cmd.Flags().Bool("no-ingest", false, "Skip the corpus directory scan on startup")
	cli.Annotate(cmd, cli.ModeDaemon, cli.EnvDaemon...)

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.HasSentry() {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.CorpusDir = dir
	}

	stack, err := cli.NewStack(ctx, cfg)
	if err != nil {
		return err
	}

	noIngest, _ := cmd.Flags().GetBool("no-ingest")
	if !noIngest {
		corpus, err := stack.Session.Ingest(ctx)
		if err != nil {
			// Serve the restored corpus; a later ingest or rescan can recover.
			log.Printf("startup ingest failed: %v", err)
			telemetry.CaptureError(ctx, err)
		} else {
			log.Printf("corpus ready: %d chunks from %d sources", corpus.Len(), len(corpus.Files()))
		}
	}

	var rescanWorker *jobs.RescanWorker
	if cfg.RescanInterval > 0 {
		rescanWorker = jobs.NewRescanWorker(stack.Session, cfg.RescanInterval)
		go rescanWorker.Start(ctx)
		log.Printf("rescan worker started (interval %s)", cfg.RescanInterval)
	}

	var dirWatcher *jobs.DirWatcher
	if cfg.Watch {
		dirWatcher, err = jobs.NewDirWatcher(stack.Session, cfg.CorpusDir, cfg.WatchDebounce)
		if err != nil {
			return err
		}
		go dirWatcher.Start(ctx)
	}

	routerCfg := server.RouterConfig{
		CorpusHandler:  handlers.NewCorpusHandler(stack.Session),
		ChatHandler:    handlers.NewChatHandler(stack.Session, stack.Answers, stack.Tones, stack.Suggestions, stack.Persona),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s (corpus: %s)", cfg.Port, cfg.CorpusDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if rescanWorker != nil {
		rescanWorker.Stop()
	}
	if dirWatcher != nil {
		dirWatcher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
