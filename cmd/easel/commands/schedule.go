package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/easelhq/easel/content"
	"github.com/easelhq/easel/publish"
)

// ScheduleCmd represents the schedule command
var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule, cancel, and move publications",
	Long: `Manage deferred publications.

Scheduling a draft moves it into review (pending_approval) and creates a
pending publication record. The content must be approved before its
scheduled instant or the publisher will fail the item.

Examples:
  easel schedule add <content-id> --at 2026-09-01T09:00:00Z
  easel schedule ls
  easel schedule move <schedule-id> --at 2026-09-02T09:00:00Z
  easel schedule cancel <schedule-id>`,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <content-id>",
	Short: "Schedule a draft content record for publication",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleAdd,
}

var scheduleCancelCmd = &cobra.Command{
	Use:   "cancel <schedule-id>",
	Short: "Cancel a pending publication",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleCancel,
}

var scheduleMoveCmd = &cobra.Command{
	Use:   "move <schedule-id>",
	Short: "Move a pending publication to a new instant",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleMove,
}

var scheduleLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List scheduled publications",
	RunE:  runScheduleLs,
}

var (
	scheduleAtFlag     string
	scheduleStatusFlag string
)

func init() {
	ScheduleCmd.AddCommand(scheduleAddCmd)
	ScheduleCmd.AddCommand(scheduleCancelCmd)
	ScheduleCmd.AddCommand(scheduleMoveCmd)
	ScheduleCmd.AddCommand(scheduleLsCmd)

	scheduleAddCmd.Flags().StringVar(&scheduleAtFlag, "at", "", "Publication instant, RFC3339 (required)")
	scheduleAddCmd.MarkFlagRequired("at")

	scheduleMoveCmd.Flags().StringVar(&scheduleAtFlag, "at", "", "New publication instant, RFC3339 (required)")
	scheduleMoveCmd.MarkFlagRequired("at")

	scheduleLsCmd.Flags().StringVar(&scheduleStatusFlag, "status", "", "Filter by status: pending, published, failed")
	scheduleLsCmd.Flags().Bool("json", false, "Output as JSON")
}

func parseInstant(value string) (time.Time, error) {
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid instant %q (want RFC3339, e.g. 2026-09-01T09:00:00Z): %w", value, err)
	}
	return at, nil
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	at, err := parseInstant(scheduleAtFlag)
	if err != nil {
		return err
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	scheduler := publish.NewScheduler(content.NewStore(database), publish.NewStore(database))
	sp, err := scheduler.Schedule(cmd.Context(), args[0], at)
	if err != nil {
		return err
	}

	if at.Before(time.Now()) {
		pterm.Warning.Println("Scheduled instant is in the past; the next publisher run will pick it up")
	}
	pterm.Success.Printf("Scheduled publication %s for %s\n", sp.ID, sp.ScheduledAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func runScheduleCancel(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	scheduler := publish.NewScheduler(content.NewStore(database), publish.NewStore(database))
	if err := scheduler.Cancel(cmd.Context(), args[0]); err != nil {
		return err
	}

	pterm.Success.Printf("Cancelled publication %s\n", args[0])
	return nil
}

func runScheduleMove(cmd *cobra.Command, args []string) error {
	at, err := parseInstant(scheduleAtFlag)
	if err != nil {
		return err
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	scheduler := publish.NewScheduler(content.NewStore(database), publish.NewStore(database))
	sp, err := scheduler.Reschedule(cmd.Context(), args[0], at)
	if err != nil {
		return err
	}

	pterm.Success.Printf("Moved publication %s to %s\n", sp.ID, sp.ScheduledAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func runScheduleLs(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	schedules, err := publish.NewStore(database).List(cmd.Context(), scheduleStatusFlag)
	if err != nil {
		return err
	}

	if useJSON, _ := cmd.Flags().GetBool("json"); useJSON {
		return json.NewEncoder(os.Stdout).Encode(schedules)
	}

	if len(schedules) == 0 {
		pterm.Info.Println("No scheduled publications")
		return nil
	}

	data := pterm.TableData{{"ID", "Content", "Scheduled At", "Status", "Published At"}}
	for _, sp := range schedules {
		data = append(data, []string{
			shortID(sp.ID),
			shortID(sp.ContentID),
			sp.ScheduledAt.Local().Format("2006-01-02 15:04"),
			sp.Status,
			formatOptionalTime(sp.PublishedAt),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
