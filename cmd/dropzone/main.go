package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/JonMunkholm/dropzone/internal/admin"
	"github.com/JonMunkholm/dropzone/internal/application"
	"github.com/JonMunkholm/dropzone/internal/config"
	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/handler"
	"github.com/JonMunkholm/dropzone/internal/logging"
	"github.com/JonMunkholm/dropzone/internal/web"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const usage = `Usage: dropzone [flags] <command> [args]

Commands:
  classify            classify every file in drop_zone/incoming (alias: classify-drop-zone)
  schemas             list the schema catalog
  requeue <area> [f]  move files from unclassified or rejected back to incoming
  watch               classify now and then every CLASSIFY_WATCH_INTERVAL
  serve               run the HTTP API
  menu                interactive menu

Flags may appear before or after the command:
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err == nil {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	// Flags default to the loaded configuration, so a flag overrides it
	fs := flag.NewFlagSet("dropzone", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.Storage.Root, "root", cfg.Storage.Root, "storage root containing drop_zone/ and raw/")
	fs.StringVar(&cfg.Storage.SchemaDir, "schemas", cfg.Storage.SchemaDir, "directory of YAML schema definitions")
	fs.IntVar(&cfg.Classify.MaxRows, "max-rows", cfg.Classify.MaxRows, "rows probed per file")
	fs.IntVar(&cfg.Classify.Workers, "workers", cfg.Classify.Workers, "files processed in parallel")
	fs.DurationVar(&cfg.Classify.FileTimeout, "file-timeout", cfg.Classify.FileTimeout, "probe timeout per file (0 disables)")
	fs.BoolVar(&cfg.Classify.DryRun, "dry-run", cfg.Classify.DryRun, "route files without moving them or writing a log")
	positional, err := parseArgs(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	command := "classify"
	if len(positional) > 0 {
		command, positional = positional[0], positional[1:]
	}
	maxArgs, ok := commandArgs[command]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		fs.Usage()
		return 2
	}
	if len(positional) > maxArgs {
		fmt.Fprintf(os.Stderr, "%s: unexpected arguments %q\n", command, positional[maxArgs:])
		return 2
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, closeAudit, err := openAudit(ctx, cfg)
	if err != nil {
		slog.Error("failed to open audit sink", "error", err)
		return 1
	}
	defer closeAudit()

	svc := core.NewService(core.ServiceConfig{
		Options: core.Options{
			Root:        cfg.Storage.Root,
			MaxRows:     cfg.Classify.MaxRows,
			Workers:     cfg.Classify.Workers,
			FileTimeout: cfg.Classify.FileTimeout,
			DryRun:      cfg.Classify.DryRun,
		},
		SchemaDir:   cfg.Storage.SchemaDir,
		HistorySize: cfg.Classify.HistorySize,
	}, sink)

	slog.Debug("configuration loaded", "config", cfg.String())

	switch command {
	case "classify", "classify-drop-zone":
		return classify(ctx, svc)
	case "schemas":
		return listSchemas(svc)
	case "requeue":
		return requeue(ctx, svc, positional, cfg.Classify.DryRun)
	case "watch":
		return watch(ctx, svc, cfg.Classify.WatchInterval)
	case "serve":
		return serve(ctx, svc, cfg)
	case "menu":
		return menu(svc, cfg)
	default:
		return 2
	}
}

// commandArgs is the number of positional arguments each command accepts.
var commandArgs = map[string]int{
	"classify":           0,
	"classify-drop-zone": 0,
	"schemas":            0,
	"requeue":            2,
	"watch":              0,
	"serve":              0,
	"menu":               0,
}

// parseArgs parses flags wherever they appear, so "classify -dry-run" and
// "-dry-run classify" mean the same. Arguments after "--" are positional.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		consumed := args[:len(args)-len(rest)]
		if len(consumed) > 0 && consumed[len(consumed)-1] == "--" {
			return append(positional, rest...), nil
		}
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

/* ----------------------------------------
	Commands
---------------------------------------- */

func classify(ctx context.Context, svc *core.Service) int {
	ctx = core.ContextWithTrigger(ctx, core.Trigger{Source: "cli"})

	result, err := svc.Classify(ctx, core.RunRequest{})
	if result != nil {
		fmt.Println(handler.FormatRun(result))
	}
	if err != nil {
		slog.Error("classification failed", "error", err, "code", core.MapError(err).Code)
		return 1
	}
	return 0
}

func listSchemas(svc *core.Service) int {
	schemas, err := svc.Schemas()
	if err != nil {
		slog.Error("failed to load schemas", "error", err, "code", core.MapError(err).Code)
		return 1
	}
	for _, s := range schemas {
		fmt.Printf("%-24s %s/%s v%s\n", s.ID, s.SourceSystem, s.DatasetName, s.Version)
		fmt.Printf("  patterns: %s\n", strings.Join(s.FilePatterns, ", "))
		fmt.Printf("  required: %s\n", strings.Join(s.RequiredColumns, ", "))
	}
	return 0
}

func requeue(ctx context.Context, svc *core.Service, args []string, dryRun bool) int {
	if len(args) == 0 || len(args) > 2 {
		fmt.Fprintln(os.Stderr, "usage: dropzone requeue <unclassified|rejected> [file]")
		return 2
	}
	area, err := admin.ParseArea(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	r := &admin.Requeuer{Router: svc.Router(), DryRun: dryRun}

	var moved []admin.Moved
	if len(args) == 2 {
		var m admin.Moved
		m, err = r.RequeueFile(ctx, area, args[1])
		if err == nil {
			moved = append(moved, m)
		}
	} else {
		moved, err = r.Requeue(ctx, area)
	}

	for _, m := range moved {
		fmt.Printf("%s -> %s\n", m.From, m.To)
	}
	if err != nil {
		slog.Error("requeue incomplete", "error", err, "code", core.MapError(err).Code, "moved", len(moved))
		return 1
	}
	fmt.Printf("requeued %d file(s)\n", len(moved))
	return 0
}

func watch(ctx context.Context, svc *core.Service, interval time.Duration) int {
	err := svc.Watch(ctx, interval, func(r *core.RunResult) {
		if r.Summary.Total > 0 {
			fmt.Println(handler.FormatRun(r))
		}
	})
	if err != nil {
		slog.Error("watch stopped", "error", err, "code", core.MapError(err).Code)
		return 1
	}
	return 0
}

func serve(ctx context.Context, svc *core.Service, cfg *config.Config) int {
	server := web.NewServer(svc, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := svc.Status(); status.Busy {
		slog.Info("waiting for active run to complete", "run_id", status.RunID)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return 1
	}
	slog.Info("server stopped")
	return 0
}

func menu(svc *core.Service, cfg *config.Config) int {
	// the menu owns the terminal; logs go to a file
	logPath := filepath.Join(os.TempDir(), "dropzone-menu.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Error("failed to open menu log", "path", logPath, "error", err)
		return 1
	}
	defer f.Close()
	slog.SetDefault(logging.New(f, cfg.Logging.Level, cfg.Logging.Format))

	if _, err := tea.NewProgram(application.New(svc)).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "menu error:", err)
		return 1
	}
	return 0
}

/* ----------------------------------------
	Audit sink
---------------------------------------- */

// openAudit connects the Postgres audit sink when DATABASE_URL is set.
// The returned close func is always safe to call.
func openAudit(ctx context.Context, cfg *config.Config) (*core.AuditSink, func(), error) {
	if !cfg.Audit.Enabled() {
		return nil, func() {}, nil
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Audit.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Audit.MaxConns)
	poolConfig.MinConns = int32(cfg.Audit.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Audit.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	sink := core.NewAuditSink(pool, cfg.Audit.Timeout)
	if err := sink.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return sink, pool.Close, nil
}
