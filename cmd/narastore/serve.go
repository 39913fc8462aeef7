package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/narastore/narastore/internal/analysis"
	"github.com/narastore/narastore/internal/api"
	"github.com/narastore/narastore/internal/config"
	"github.com/narastore/narastore/internal/report"
	"github.com/narastore/narastore/internal/storage"
	"github.com/narastore/narastore/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the narastore API server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

// mcpCmd is serve with the stdio MCP transport attached, so tool writes go
// through the same store and reach the dashboard's live streams.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the API server and serve narastore tools over MCP on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(true)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools on stdin/stdout")
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "narastore version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	client := analysis.New(cfg.Analysis.BaseURL, analysis.Options{Timeout: cfg.Analysis.Timeout})
	monitor := analysis.NewMonitor(client, cfg.Analysis.HealthInterval)
	wf := workflow.New(store, client, workflow.Options{
		APIKey:   cfg.Analysis.APIKey,
		MockMode: cfg.Analysis.MockMode,
	})

	if err := wf.Ready(); err != nil {
		printWarning("%v: uploads are blocked until NARASTORE_GEMINI_API_KEY is set", err)
	} else if cfg.Analysis.MockMode && cfg.Analysis.APIKey == "" {
		printWarning("mock mode: uploads proceed without an API key")
	}
	if cfg.Server.Token == "" {
		slog.Warn("NARASTORE_SERVER_TOKEN is not set; the API accepts unauthenticated requests")
	}
	if cfg.Report.FontPath == "" {
		slog.Warn("report.font_path is not set; local PDF reports cannot draw Hangul and default to the backend export")
	}

	handler := api.NewAppHandler(api.AppDeps{
		Store:    store,
		Workflow: wf,
		Exporter: client,
		Health:   monitor,
		Renderer: report.Renderer{FontPath: cfg.Report.FontPath},
		Token:    cfg.Server.Token,
		BaseURL:  client.BaseURL(),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitor.Run(gctx)
	})
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "narastore listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	if wf.Busy() {
		slog.Info("waiting for in-flight analyses", "count", wf.InFlight())
	}
	wf.Wait()
	return err
}
