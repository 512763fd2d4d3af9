package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-sync/internal/auth"
	"github.com/brandon/mail-sync/internal/cache"
	"github.com/brandon/mail-sync/internal/config"
	"github.com/brandon/mail-sync/internal/email"
	"github.com/brandon/mail-sync/internal/mcp"
	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/internal/tools"
)

var (
	version     = "dev"
	showVersion = flag.Bool("version", false, "Show version information")
	serve       = flag.Bool("serve", false, "Serve MCP tools over stdio with background sync")
	once        = flag.Bool("once", false, "Sync every account once and exit")
	search      = flag.String("search", "", "Search the local cache and print matches as JSON")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mail-sync version %s\n", version)
		os.Exit(0)
	}

	// Set up logging. Stdout carries the MCP stream, so logs go to stderr.
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.NeedsKeyring() {
		ring, err := config.OpenKeyring(filepath.Dir(cfg.CachePath))
		if err != nil {
			logger.WithError(err).Fatal("Failed to open keyring")
		}
		if err := cfg.ResolveSecrets(ring); err != nil {
			logger.WithError(err).Fatal("Failed to resolve secrets")
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	// Set log level
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithField("version", version).Info("Starting mail sync")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize cache
	emailCache, err := cache.NewCache(ctx, cfg.CachePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize cache")
	}
	defer emailCache.Close()

	cacheStore := cache.NewStore(emailCache, logger)

	if *search != "" {
		results, err := cacheStore.SearchFTS(ctx, *search, nil, cfg.SearchResultLimit)
		if err != nil {
			logger.WithError(err).Fatal("Failed to search cache")
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			logger.WithError(err).Fatal("Failed to print results")
		}
		return
	}

	tokens := auth.NewTokens(logger, cfg.OAuthClients())
	manager := email.NewManager(cacheStore, logger, provider.SyncOptions{MaxMessages: cfg.MaxMessages})

	for _, acc := range cfg.Accounts {
		log := logger.WithFields(logrus.Fields{"account": acc.ID, "provider": string(acc.Kind)})
		tokens.Register(acc)
		p, err := email.NewProvider(acc, cacheStore, tokens, logger)
		if err != nil {
			log.WithError(err).Error("Failed to create provider")
			continue
		}
		if err := manager.AddAccount(ctx, acc, p); err != nil {
			log.WithError(err).Error("Failed to add account")
			continue
		}
	}

	interval := cfg.SyncInterval()
	if *once {
		interval = 0
	}

	if !*serve {
		manager.Run(ctx, interval, func(reports []email.Report) { logReports(logger, reports) })
		logger.Info("Shutting down mail sync")
		return
	}

	go manager.Run(ctx, interval, func(reports []email.Report) { logReports(logger, reports) })

	server := mcp.NewServer(tools.NewRegistry(manager, cacheStore, logger, cfg.SearchResultLimit), logger, version)
	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil {
		logger.WithError(err).Error("Server error")
	}
	logger.Info("Shutting down mail sync")
}

func logReports(logger *logrus.Logger, reports []email.Report) {
	var failed, reauth int
	for _, r := range reports {
		if r.NeedsReauth() {
			reauth++
			logger.WithField("account", r.AccountID).Warn("Account needs re-authorization")
			continue
		}
		if !r.Inbox.OK() || !r.Sent.OK() || !r.Drafts.OK() {
			failed++
		}
	}
	logger.WithFields(logrus.Fields{
		"accounts": len(reports),
		"failed":   failed,
		"reauth":   reauth,
	}).Info("Sync round complete")
}
