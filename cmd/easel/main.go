package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/easelhq/easel/cmd/easel/commands"
	"github.com/easelhq/easel/logger"
)

var rootCmd = &cobra.Command{
	Use:   "easel",
	Short: "Easel - content lifecycle and deferred publication",
	Long: `Easel - content lifecycle and deferred publication backend.

Easel tracks author-created content through its review lifecycle
(draft, pending_approval, approved, rejected, published) and promotes
scheduled publications to published content when they come due.

Available commands:
  content   - Create, list, and review content records
  schedule  - Schedule, cancel, and move publications
  publisher - Run the publisher job once or as a daemon
  db        - Manage the easel database
  serve     - Start the HTTP API and event feed

Examples:
  easel content create --title "Launch post" --type post
  easel schedule add <content-id> --at 2026-09-01T09:00:00Z
  easel publisher run
  easel serve`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbose, _ := cmd.Flags().GetCount("verbose"); verbose > 0 {
			logger.SetLevel(zapcore.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.ContentCmd)
	rootCmd.AddCommand(commands.ScheduleCmd)
	rootCmd.AddCommand(commands.PublisherCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
