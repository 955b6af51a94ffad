package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scholar-watch/contenthub/internal/collect"
	"scholar-watch/contenthub/internal/collect/bilibili"
	"scholar-watch/contenthub/internal/collect/rsshub"
	"scholar-watch/contenthub/internal/collect/zhihu"
	"scholar-watch/contenthub/internal/config"
	"scholar-watch/contenthub/internal/database"
	"scholar-watch/contenthub/internal/dedupe"
	"scholar-watch/contenthub/internal/ingest"
	"scholar-watch/contenthub/internal/models"
	"scholar-watch/contenthub/internal/server"
	"scholar-watch/contenthub/internal/zhihuauth"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func usage() {
	fmt.Println("Usage: contenthub [command] [options]")
	fmt.Println("Commands: serve, collect, import, sweep")
	fmt.Println("\nFor command-specific options, use: contenthub [command] -h")
}

func main() {
	cfg := config.Load()

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveCmd.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: CONTENTHUB_DB_PATH)")
	serveCmd.StringVar(&cfg.ServerHost, "host", cfg.ServerHost,
		"Host to bind the server to (env: CONTENTHUB_SERVER_HOST)")
	serveCmd.IntVar(&cfg.ServerPort, "port", cfg.ServerPort,
		"Port to listen on (env: CONTENTHUB_SERVER_PORT)")
	serveLogLevel := serveCmd.String("log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: CONTENTHUB_LOG_LEVEL)")

	collectCmd := flag.NewFlagSet("collect", flag.ExitOnError)
	collectCmd.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: CONTENTHUB_DB_PATH)")
	collectKeywords := collectCmd.String("keywords", "",
		"Comma-separated keywords to search for (required)")
	collectPlatforms := collectCmd.String("platforms", "",
		"Comma-separated platform slugs, empty means all registered sources")
	collectCmd.IntVar(&cfg.PerKeyword, "per-keyword", cfg.PerKeyword,
		"Items to collect per keyword per platform (env: CONTENTHUB_PER_KEYWORD)")
	collectCmd.IntVar(&cfg.CommentsPerPost, "comments-per-post", cfg.CommentsPerPost,
		"Top-level comments to fetch per post (env: CONTENTHUB_COMMENTS_PER_POST)")
	collectCookie := collectCmd.String("cookie", "",
		"Session cookie passed to the bilibili and zhihu sources")
	collectOut := collectCmd.String("out", "",
		"Write collected items as JSON to this file instead of ingesting them")
	collectIngest := collectCmd.Bool("ingest", false,
		"Ingest collected items even when -out is set")
	collectLogLevel := collectCmd.String("log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: CONTENTHUB_LOG_LEVEL)")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importCmd.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: CONTENTHUB_DB_PATH)")
	importFile := importCmd.String("file", "",
		"Path to a JSON file holding an array of raw items (required)")
	importLogLevel := importCmd.String("log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: CONTENTHUB_LOG_LEVEL)")

	sweepCmd := flag.NewFlagSet("sweep", flag.ExitOnError)
	sweepCmd.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: CONTENTHUB_DB_PATH)")
	sweepDryRun := sweepCmd.Bool("dry-run", false,
		"Count duplicates without deleting anything")
	sweepLogLevel := sweepCmd.String("log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: CONTENTHUB_LOG_LEVEL)")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, *serveLogLevel)

		if err := runServe(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "collect":
		collectCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, *collectLogLevel)

		keywords := splitList(*collectKeywords)
		if len(keywords) == 0 {
			log.Error().Msg("At least one keyword is required (-keywords)")
			os.Exit(1)
		}

		if *collectCookie != "" {
			cfg.BilibiliCookie = *collectCookie
			cfg.ZhihuCookie = *collectCookie
		}

		if err := runCollect(cfg, keywords, splitList(*collectPlatforms), *collectOut, *collectIngest); err != nil {
			log.Error().Err(err).Msg("Collection failed")
			os.Exit(1)
		}

	case "import":
		importCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, *importLogLevel)

		if *importFile == "" {
			log.Error().Msg("An input file is required (-file)")
			os.Exit(1)
		}

		if err := runImport(cfg, *importFile); err != nil {
			log.Error().Err(err).Msg("Import failed")
			os.Exit(1)
		}

	case "sweep":
		sweepCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, *sweepLogLevel)

		if err := runSweep(cfg, *sweepDryRun); err != nil {
			log.Error().Err(err).Msg("Sweep failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		usage()
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		usage()
		os.Exit(1)
	}
}

func applyLogLevel(cfg *config.Config, levelStr string) {
	if level, err := zerolog.ParseLevel(levelStr); err == nil {
		cfg.LogLevel = level
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func openDB(cfg *config.Config) (*database.DB, error) {
	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// runServe starts the HTTP API server with the provided configuration.
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	oauth := zhihuauth.Config{
		ClientID:     cfg.ZhihuClientID,
		ClientSecret: cfg.ZhihuClientSecret,
	}
	if !oauth.Configured() {
		log.Warn().Msg("Zhihu OAuth credentials not configured; reply sending will be unavailable")
	}

	return server.RunServer(db, cfg.ListenAddr(), log.Logger, cfg.APIKey, oauth, cfg.MaxImportItems)
}

// newCollector assembles the built-in sources plus one RSSHub source per
// configured route.
func newCollector(cfg *config.Config) *collect.Collector {
	sources := []collect.Source{
		bilibili.New(cfg.BilibiliCookie),
		zhihu.New(cfg.ZhihuCookie),
	}
	for slug, route := range config.RSSHubRoutes {
		sources = append(sources, rsshub.New(slug, cfg.RSSHubBase+route))
	}
	return collect.New(sources...)
}

// runCollect gathers candidates for the keywords and sinks them to a file,
// the ingestion pipeline, or both. No -out means ingest.
func runCollect(cfg *config.Config, keywords, platforms []string, outPath string, forceIngest bool) error {
	collector := newCollector(cfg)
	budget := collect.Budget{
		PerKeyword:      cfg.PerKeyword,
		CommentsPerPost: cfg.CommentsPerPost,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	start := time.Now()
	items := collector.Run(ctx, keywords, platforms, budget)
	log.Info().
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Collection finished")

	if outPath != "" {
		if err := collect.WriteSink(outPath, items); err != nil {
			return err
		}
		log.Info().Str("path", outPath).Msg("Wrote collected items")
		if !forceIngest {
			return nil
		}
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return ingestItems(ctx, db, items)
}

// runImport ingests raw items from a JSON file.
func runImport(cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var items []models.RawItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return ingestItems(context.Background(), db, items)
}

func ingestItems(ctx context.Context, db *database.DB, items []models.RawItem) error {
	result, err := ingest.NewService(db).Import(ctx, items)
	if err != nil {
		return err
	}

	log.Info().
		Int("total", result.Total).
		Int("inserted", result.Inserted).
		Int("invalid", result.Invalid).
		Int("duplicate_in_batch", result.DuplicateInBatch).
		Int("duplicate_in_store", result.DuplicateInStore).
		Msg("Ingestion finished")
	return nil
}

// runSweep runs one dedup maintenance sweep.
func runSweep(cfg *config.Config, dryRun bool) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := dedupe.Sweep(ctx, db, dryRun)
	if err != nil {
		return err
	}

	log.Info().
		Int("duplicate_groups", result.DuplicateGroups).
		Int("duplicate_rows", result.DuplicateRows).
		Int64("deleted", result.Deleted).
		Bool("dry_run", result.DryRun).
		Msg("Sweep finished")
	return nil
}
