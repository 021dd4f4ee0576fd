package commands

import (
	"encoding/json"
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
)

// PublisherCmd represents the publisher command
var PublisherCmd = &cobra.Command{
	Use:   "publisher",
	Short: "Run the scheduled publication job",
	Long: `Promote due scheduled publications.

'run' executes a single batch: every pending publication whose instant has
passed is published (or marked failed) and a per-item report is printed.
'start' runs the batch on an interval until interrupted.`,
}

var publisherRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one publisher batch and print the report",
	RunE:  runPublisherRun,
}

var publisherStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the publisher on an interval (foreground daemon)",
	RunE:  runPublisherStart,
}

var publisherIntervalFlag int

func init() {
	PublisherCmd.AddCommand(publisherRunCmd)
	PublisherCmd.AddCommand(publisherStartCmd)

	publisherRunCmd.Flags().Bool("json", false, "Output the report as JSON")
	publisherStartCmd.Flags().IntVar(&publisherIntervalFlag, "interval", 0,
		"Tick interval in seconds (default: from config)")
}

func runPublisherRun(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	publisher := publish.NewPublisher(content.NewStore(database), publish.NewStore(database), nil)
	report, err := publisher.RunOnce(cmd.Context())
	if err != nil {
		return err
	}

	if useJSON, _ := cmd.Flags().GetBool("json"); useJSON {
		return json.NewEncoder(os.Stdout).Encode(report)
	}

	if report.Processed == 0 {
		pterm.Info.Println("No publications due")
		return nil
	}

	data := pterm.TableData{{"Schedule", "Content", "Status", "Error"}}
	for _, result := range report.Results {
		data = append(data, []string{
			shortID(result.ID),
			shortID(result.ContentID),
			result.Status,
			result.Error,
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pterm.Success.Printf("Processed %d publication(s)\n", report.Processed)
	return nil
}

func runPublisherStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	intervalSeconds := cfg.Publisher.TickerIntervalSeconds
	if publisherIntervalFlag > 0 {
		intervalSeconds = publisherIntervalFlag
	}

	schedules := publish.NewStore(database)
	publisher := publish.NewPublisher(content.NewStore(database), schedules, nil)
	ticker := publish.NewTickerWithContext(cmd.Context(), publisher, schedules, publish.TickerConfig{
		Interval: time.Duration(intervalSeconds) * time.Second,
	})
	ticker.Start()

	pterm.Info.Printf("Publisher running every %ds, press Ctrl+C to stop\n", intervalSeconds)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Infow("Shutting down publisher", "signal", sig.String())
	ticker.Stop()
	pterm.Success.Println("Publisher stopped")
	return nil
}
