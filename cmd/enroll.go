package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/enrollment"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <student-id> <name> <course> <photo>",
	Short: "Enroll a student from a photo",
	Long: `Enroll a student from a photo.
The first face found in the photo becomes the student's reference embedding.
Fails if the student ID is taken or no face is detected.`,
	Args: cobra.ExactArgs(4),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	data, err := os.ReadFile(args[3]) //nolint:gosec // path is from trusted CLI argument
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	student, err := a.enroller.WithoutReload().Enroll(ctx, enrollment.Request{
		ID:     args[0],
		Name:   args[1],
		Course: args[2],
		Image:  data,
	})
	if err != nil {
		var enrollErr *enrollment.Error
		if errors.As(err, &enrollErr) {
			return fmt.Errorf("enrollment rejected (%s): %w", enrollErr.Kind, err)
		}
		return err
	}

	fmt.Printf("Student %s (%s, %s) registered successfully!\n", student.Name, student.ID, student.Course)
	return nil
}
