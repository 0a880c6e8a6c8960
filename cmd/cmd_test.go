package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

func TestReadManifest(t *testing.T) {
	manifest := `student_id,name,course,photo
S1,"Rao, Asha",CS,photos/asha.jpg
S2, Bala,Physics,bala.png
`
	rows, err := readManifest(strings.NewReader(manifest), "/data/import")
	if err != nil {
		t.Fatalf("readManifest failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].name != "Rao, Asha" || rows[0].photo != filepath.Join("/data/import", "photos/asha.jpg") {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[1].name != "Bala" {
		t.Errorf("expected leading space trimmed, got %q", rows[1].name)
	}
}

func TestReadManifest_NoHeader(t *testing.T) {
	rows, err := readManifest(strings.NewReader("S1,Asha,CS,a.jpg\n"), ".")
	if err != nil {
		t.Fatalf("readManifest failed: %v", err)
	}
	if len(rows) != 1 || rows[0].id != "S1" {
		t.Errorf("expected first line treated as data, got %+v", rows)
	}
}

func TestReadManifest_WrongColumns(t *testing.T) {
	if _, err := readManifest(strings.NewReader("S1,Asha,CS\n"), "."); err == nil {
		t.Error("expected error for a row with missing columns")
	}
}

func TestOpenRepository(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.URL = filepath.Join(t.TempDir(), "attendance.db")

	repo, err := openRepository(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openRepository failed: %v", err)
	}
	defer repo.Close()

	if n, err := repo.CountStudents(context.Background()); err != nil || n != 0 {
		t.Errorf("expected empty store, got %d, %v", n, err)
	}
}

func TestOpenRepository_UnknownDriver(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.Driver = "oracle"

	if _, err := openRepository(context.Background(), cfg, logging.Discard()); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestNewApp_WithoutDetector(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.URL = filepath.Join(t.TempDir(), "attendance.db")

	a, err := newApp(context.Background(), cfg, logging.Discard(), false)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.Close()

	if a.enroller != nil || a.detector != nil {
		t.Error("expected no detector or enroller")
	}
	if a.reporter.Location().String() != "UTC+05:30" {
		t.Errorf("expected default attendance zone, got %s", a.reporter.Location())
	}
}

func TestNewApp_BadTimezone(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.URL = filepath.Join(t.TempDir(), "attendance.db")
	cfg.Attendance.Timezone = "+99:00"

	if _, err := newApp(context.Background(), cfg, logging.Discard(), false); err == nil {
		t.Error("expected error for invalid timezone")
	}
}
