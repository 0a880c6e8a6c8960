package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "List enrolled students",
	Args:  cobra.NoArgs,
	RunE:  runStudents,
}

func init() {
	rootCmd.AddCommand(studentsCmd)

	studentsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStudents(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := newApp(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	students, err := a.repo.ListStudents(ctx)
	if err != nil {
		return fmt.Errorf("listing students: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(students)
	}

	if len(students) == 0 {
		fmt.Println("No students enrolled.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOURSE\tENROLLED")
	for _, s := range students {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Course, s.CreatedAt.Local().Format(constants.TimestampLayout))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d\n", len(students))
	return nil
}
