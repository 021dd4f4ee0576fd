package commands

import (
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/easelhq/easel/config"
	"github.com/easelhq/easel/errors"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the easel configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value and write it to easel.toml",
	Long: `Set a configuration value and persist it.

The previous file contents are kept as rotating backups. Supported keys:

  database.path
  server.port
  server.allowed_origins (comma-separated)
  publisher.ticker_interval_seconds
  publisher.broadcast_events_per_second`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	path := config.FindConfigFile()
	if path == "" {
		pterm.Info.Println("No easel.toml found; showing defaults")
	} else {
		pterm.Info.Printf("Config file: %s\n", path)
	}

	data := pterm.TableData{
		{"Key", "Value"},
		{"database.path", cfg.Database.Path},
		{"server.port", strconv.Itoa(cfg.Server.Port)},
		{"server.allowed_origins", strings.Join(cfg.Server.AllowedOrigins, ",")},
		{"publisher.ticker_interval_seconds", strconv.Itoa(cfg.Publisher.TickerIntervalSeconds)},
		{"publisher.broadcast_events_per_second", strconv.FormatFloat(cfg.Publisher.BroadcastEventsPerSecond, 'f', -1, 64)},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	path := config.FindConfigFile()
	if path == "" {
		path = "easel.toml"
	}

	// Edit what the file holds, not the env-merged view, so an EASEL_
	// override does not get baked into the file as a side effect.
	var cfg *config.Config
	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if err := applyConfigValue(cfg, key, value); err != nil {
		return err
	}

	if err := config.Save(cfg, path); err != nil {
		return err
	}

	pterm.Success.Printf("Set %s = %s in %s\n", key, value, path)
	return nil
}

// applyConfigValue parses value for the given dotted key and assigns it.
func applyConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "database.path":
		cfg.Database.Path = value
	case "server.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return errors.NewInvalidRequestError("server.port must be an integer, got %q", value)
		}
		if port < 1 || port > 65535 {
			return errors.NewInvalidRequestError("server.port %d out of range", port)
		}
		cfg.Server.Port = port
	case "server.allowed_origins":
		var origins []string
		for _, origin := range strings.Split(value, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		cfg.Server.AllowedOrigins = origins
	case "publisher.ticker_interval_seconds":
		interval, err := strconv.Atoi(value)
		if err != nil || interval < 1 {
			return errors.NewInvalidRequestError("publisher.ticker_interval_seconds must be a positive integer, got %q", value)
		}
		cfg.Publisher.TickerIntervalSeconds = interval
	case "publisher.broadcast_events_per_second":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil || rate <= 0 {
			return errors.NewInvalidRequestError("publisher.broadcast_events_per_second must be a positive number, got %q", value)
		}
		cfg.Publisher.BroadcastEventsPerSecond = rate
	default:
		return errors.NewInvalidRequestError("unknown config key %q", key)
	}
	return nil
}
