package commands

import (
	"database/sql"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/easelhq/easel/config"
	"github.com/easelhq/easel/db"
	"github.com/easelhq/easel/logger"
)

// DbCmd represents the db command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts per table and status",
	RunE:  runDbStats,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply any pending schema migrations",
	RunE:  runDbMigrate,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbMigrateCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	contentCounts, err := countByStatus(database, "contents")
	if err != nil {
		return err
	}
	scheduleCounts, err := countByStatus(database, "scheduled_publications")
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println("Contents")
	if err := renderCounts(contentCounts); err != nil {
		return err
	}

	pterm.DefaultSection.Println("Scheduled publications")
	return renderCounts(scheduleCounts)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	path, err := config.GetDatabasePath()
	if err != nil {
		return err
	}
	if path == "" {
		path = "easel.db"
	}
	database, err := db.Open(path, logger.Logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database, logger.Logger); err != nil {
		return err
	}

	pterm.Success.Printf("Database %s is up to date\n", path)
	return nil
}

type statusCount struct {
	status string
	count  int
}

func countByStatus(database *sql.DB, table string) ([]statusCount, error) {
	rows, err := database.Query(fmt.Sprintf(
		"SELECT status, COUNT(*) FROM %s GROUP BY status ORDER BY status", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []statusCount
	for rows.Next() {
		var sc statusCount
		if err := rows.Scan(&sc.status, &sc.count); err != nil {
			return nil, err
		}
		counts = append(counts, sc)
	}
	return counts, rows.Err()
}

func renderCounts(counts []statusCount) error {
	if len(counts) == 0 {
		pterm.Info.Println("No records")
		return nil
	}

	total := 0
	data := pterm.TableData{{"Status", "Count"}}
	for _, sc := range counts {
		data = append(data, []string{sc.status, fmt.Sprintf("%d", sc.count)})
		total += sc.count
	}
	data = append(data, []string{"total", fmt.Sprintf("%d", total)})
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
