package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-attendance/internal/enrollment"
)

const manifestName = "students.csv"

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Enroll students in bulk from a directory",
	Long: `Enroll students in bulk from a directory.
The directory must contain a students.csv manifest with the columns
student_id,name,course,photo where photo is a path relative to the directory.
Rows that fail are reported and skipped; the rest are enrolled.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Int("concurrency", 4, "Number of photos processed in parallel")
}

// importRow is one manifest line.
type importRow struct {
	line   int
	id     string
	name   string
	course string
	photo  string
}

// readManifest parses the manifest, skipping a header row if present.
func readManifest(r io.Reader, dir string) ([]importRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	var rows []importRow
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("manifest: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "student_id") {
			continue
		}
		rows = append(rows, importRow{
			line:   line,
			id:     rec[0],
			name:   rec[1],
			course: rec[2],
			photo:  filepath.Join(dir, filepath.Clean(rec[3])),
		})
	}
	return rows, nil
}

// importResult tallies outcomes by enrollment error kind.
type importResult struct {
	mu       sync.Mutex
	enrolled int
	failed   map[string]int
	messages []string
}

func (r *importResult) fail(row importRow, kind string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[kind]++
	r.messages = append(r.messages, fmt.Sprintf("line %d (%s): %v", row.line, row.id, err))
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}
	dir := args[0]
	ctx := context.Background()

	f, err := os.Open(filepath.Join(dir, manifestName)) //nolint:gosec // path is from trusted CLI argument
	if err != nil {
		return fmt.Errorf("opening manifest: %w", err)
	}
	rows, err := readManifest(f, dir)
	f.Close()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("Manifest is empty, nothing to import.")
		return nil
	}

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Students to import: %d\n\n", len(rows))

	bar := progressbar.NewOptions(len(rows),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	// Nothing matches during an import; the server reloads on start.
	enroller := a.enroller.WithoutReload()
	result := &importResult{failed: make(map[string]int)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, row := range rows {
		g.Go(func() error {
			defer bar.Add(1)

			data, err := os.ReadFile(row.photo)
			if err != nil {
				result.fail(row, "unreadable_photo", err)
				return nil
			}
			_, err = enroller.Enroll(gctx, enrollment.Request{
				ID: row.id, Name: row.name, Course: row.course, Image: data,
			})
			if err != nil {
				kind := "error"
				var enrollErr *enrollment.Error
				if errors.As(err, &enrollErr) {
					kind = enrollErr.Kind.String()
				}
				result.fail(row, kind, err)
				return nil
			}

			result.mu.Lock()
			result.enrolled++
			result.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Println()

	fmt.Printf("\nCompleted: %d enrolled, %d failed\n", result.enrolled, len(result.messages))
	for kind, n := range result.failed {
		fmt.Printf("  %s: %d\n", kind, n)
	}
	for _, msg := range result.messages {
		fmt.Printf("  - %s\n", msg)
	}
	total, err := a.repo.CountStudents(ctx)
	if err == nil {
		fmt.Printf("Total students enrolled: %d\n", total)
	}
	return nil
}
