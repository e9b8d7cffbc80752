package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/castmatch/castmatch/internal/agent"
	"github.com/castmatch/castmatch/internal/api"
	"github.com/castmatch/castmatch/internal/capability"
	"github.com/castmatch/castmatch/internal/config"
	"github.com/castmatch/castmatch/internal/drafts"
	"github.com/castmatch/castmatch/internal/graph"
	"github.com/castmatch/castmatch/internal/instagram"
	"github.com/castmatch/castmatch/internal/interactions"
	"github.com/castmatch/castmatch/internal/llm"
	"github.com/castmatch/castmatch/internal/ranking"
	"github.com/castmatch/castmatch/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the castmatch server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running castmatch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show castmatch system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "castmatch.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "castmatch version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if cfg.Server.APIToken == "" {
		return fmt.Errorf("missing API token; set CASTMATCH_API_TOKEN")
	}

	// Refuse to start twice: probe health, then claim the PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("castmatch is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("castmatch is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

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

	// Wire services.
	graphSvc := graph.NewService(store)
	ranker := ranking.New(store, graphSvc)
	interactionSvc := interactions.NewService(store, graphSvc)

	var source instagram.Source = instagram.NewMockSource(cfg.Instagram.FixturesDir)
	if cfg.Instagram.SourceMode != "mock" {
		slog.Warn("unsupported instagram source mode, falling back to mock", "mode", cfg.Instagram.SourceMode)
	}

	registry, err := capability.NewRegistry(capability.Deps{
		Store:        store,
		Ranker:       ranker,
		Interactions: interactionSvc,
		Source:       source,
	})
	if err != nil {
		return fmt.Errorf("building capability registry: %w", err)
	}

	chat := llm.New(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	planner := agent.NewPlanner(chat, registry)
	runner := agent.NewRunner(store, planner, registry, slog.Default())
	draftSvc := drafts.NewService(chat)

	handler := api.NewHandler(api.Deps{
		Store:        store,
		Graph:        graphSvc,
		Ranker:       ranker,
		Interactions: interactionSvc,
		Registry:     registry,
		Runner:       runner,
		Drafts:       draftSvc,
		Models:       chat,
		Token:        cfg.Server.APIToken,
		HTTPClient:   &http.Client{Timeout: 15 * time.Second},
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server on stdio, beside HTTP.
	mcpSrv := api.NewMCPServer(registry, store)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "castmatch listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("castmatch is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop castmatch (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to castmatch (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("LLM endpoint", "%s", cfg.LLM.BaseURL)
	printStatus("LLM model", "%s", cfg.LLM.Model)
	printStatus("Instagram source", "%s", cfg.Instagram.SourceMode)

	if running && cfg.Server.APIToken != "" {
		apiClientForStatus := &apiClient{
			baseURL:    serverURL,
			token:      cfg.Server.APIToken,
			httpClient: client,
		}
		if n, err := countRecords(apiClientForStatus, "/campaigns?limit=200"); err == nil {
			printStatus("Campaigns", "%s", countLabel(n, 200))
		}
		if n, err := countRecords(apiClientForStatus, "/influencers?limit=200"); err == nil {
			printStatus("Influencers", "%s", countLabel(n, 200))
		}
		if n, err := countRecords(apiClientForStatus, "/goal-runs?limit=50"); err == nil {
			printStatus("Goal runs", "%s", countLabel(n, 50))
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countRecords(client *apiClient, path string) (int, error) {
	resp, err := client.get(context.Background(), path)
	if err != nil {
		return 0, err
	}
	var records []json.RawMessage
	if err := decodeJSON(resp, &records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
