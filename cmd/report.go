package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show today's attendance summary and the attendance log",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().Int("limit", 20, "Number of log entries to show (0 for all)")
	reportCmd.Flags().Bool("json", false, "Output as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	limit := mustGetInt(cmd, "limit")
	ctx := context.Background()

	a, err := newApp(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.reporter.Summary(ctx, time.Now())
	if err != nil {
		return err
	}
	entries, err := a.reporter.Log(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"summary": summary, "records": entries})
	}

	fmt.Printf("Date:             %s\n", summary.Date)
	fmt.Printf("Total students:   %d\n", summary.TotalStudents)
	fmt.Printf("Present today:    %d\n", summary.TodayAttendees)
	fmt.Printf("Attendance rate:  %.1f%%\n\n", summary.AttendanceRate)

	if len(entries) == 0 {
		fmt.Println("No attendance recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTIME\tSTUDENT ID\tNAME\tCOURSE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.DateStr, e.TimeStr, e.StudentID, e.Name, e.Course)
	}
	return tw.Flush()
}
