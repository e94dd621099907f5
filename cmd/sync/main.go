// Command sync starts a LazyChat product sync for the connected shop and
// follows its progress until it completes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"lazychat/internal/config"
	"lazychat/internal/database"
	"lazychat/internal/logger"
	"lazychat/internal/saas"
	"lazychat/internal/settings"
	"lazychat/internal/syncer"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func main() {
	statusOnly := flag.Bool("status", false, "show the current sync state without starting a sync")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Logs go to a file so they do not tear the terminal view
	logPath := cfg.LogFile
	if logPath == "" {
		logPath, err = xdg.StateFile(filepath.Join("lazychat", "sync.log"))
		if err != nil {
			log.Fatal("Failed to resolve log file:", err)
		}
	}
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()
	logger := logger.NewWithWriter(cfg.LogLevel, logFile)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	client := saas.NewClient(saas.Options{
		BaseURL:            cfg.LazyChatAPIURL,
		PluginVersion:      cfg.PluginVersion,
		InteractiveTimeout: cfg.InteractiveTimeout,
		BulkTimeout:        cfg.BulkTimeout,
		TelemetryTimeout:   cfg.TelemetryTimeout,
	}, logger)

	cooldownPath, err := syncer.DefaultCooldownPath()
	if err != nil {
		log.Fatal("Failed to resolve cooldown file:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	program := tea.NewProgram(newSyncModel(lipgloss.DefaultRenderer(), *statusOnly), tea.WithContext(ctx))
	o := syncer.New(client, settings.New(db.DB), programView{program: program}, syncer.Options{
		Store: syncer.NewFileStore(cooldownPath),
	}, logger)

	runErr := make(chan error, 1)
	go func() {
		runErr <- run(ctx, o, *statusOnly)
	}()

	_, err = program.Run()
	o.Stop()
	cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintln(os.Stderr, "Terminal error:", err)
	}

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sync failed: %v", err)
		fmt.Fprintln(os.Stderr, saas.UserMessage(err))
		fmt.Fprintf(os.Stderr, "Details were written to %s\n", logPath)
		logFile.Close()
		db.Close()
		os.Exit(1)
	}
}

// run starts the sync, or in status mode picks up the current one. The
// program renders what follows.
func run(ctx context.Context, o *syncer.Orchestrator, statusOnly bool) error {
	if statusOnly {
		return o.Reconcile(ctx)
	}
	err := o.Start(ctx)
	if errors.Is(err, syncer.ErrCooldownActive) {
		return nil
	}
	return err
}
