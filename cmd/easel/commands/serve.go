package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/easelhq/easel/config"
	"github.com/easelhq/easel/content"
	"github.com/easelhq/easel/logger"
	"github.com/easelhq/easel/publish"
	"github.com/easelhq/easel/server"
)

// ServeCmd represents the serve command
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and publisher ticker",
	Long: `Run easel as a long-lived service.

Starts the HTTP API with the WebSocket event feed and the publisher ticker
in one process. Configuration changes to easel.toml are picked up live
where possible; stop with Ctrl+C.`,
	RunE: runServe,
}

var servePortFlag int

func init() {
	ServeCmd.Flags().IntVar(&servePortFlag, "port", 0, "Listen port (default: from config)")
	ServeCmd.Flags().Bool("no-watch", false, "Disable live config reloading")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePortFlag > 0 {
		cfg.Server.Port = servePortFlag
	}

	database, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	contents := content.NewStore(database)
	schedules := publish.NewStore(database)

	srv := server.New(cfg, contents, schedules)
	ticker := publish.NewTickerWithContext(cmd.Context(), srv.Publisher(), schedules, publish.TickerConfig{
		Interval: time.Duration(cfg.Publisher.TickerIntervalSeconds) * time.Second,
	})
	ticker.Start()

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); !noWatch {
		startConfigWatcher()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	pterm.Info.Printf("easel serving on port %d, press Ctrl+C to stop\n", cfg.Server.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infow("Shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			ticker.Stop()
			return err
		}
	}

	ticker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("Server shutdown error", logger.FieldError, err)
	}

	if watcher := config.GetGlobalWatcher(); watcher != nil {
		watcher.Stop()
	}

	pterm.Success.Println("Stopped")
	return nil
}

// startConfigWatcher wires live reloading of easel.toml. Reload failures are
// logged and the previous configuration stays in effect.
func startConfigWatcher() {
	configPath := config.FindConfigFile()
	if configPath == "" {
		logger.Debugw("No easel.toml found, live reload disabled")
		return
	}

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		logger.Warnw("Config watcher unavailable", logger.FieldError, err)
		return
	}

	watcher.OnReload(func(cfg *config.Config) error {
		logger.Infow("Configuration reloaded",
			"ticker_interval_seconds", cfg.Publisher.TickerIntervalSeconds,
		)
		return nil
	})

	watcher.Start()
	config.SetGlobalWatcher(watcher)
}
