package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the attendance log as CSV",
	Long: `Export the attendance log as CSV, newest first.
Writes to ` + constants.ExportFilename + ` by default; use --output - for stdout.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", constants.ExportFilename, "Output file, - for stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	output := mustGetString(cmd, "output")
	ctx := context.Background()

	a, err := newApp(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.reporter.Log(ctx)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output) //nolint:gosec // path is from trusted flag
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	if err := attendance.WriteCSV(w, entries, a.reporter.Location()); err != nil {
		return err
	}
	if output != "-" {
		fmt.Fprintf(os.Stderr, "Exported %d records to %s\n", len(entries), output)
	}
	return nil
}
