package postgres

import (
	"errors"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestDecodeVector(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{"valid", "[0.5,1,-2]", 3, false},
		{"empty", "[]", 0, true},
		{"garbage", "not a vector", 0, true},
		{"nan", "[NaN,1]", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeVector(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, database.ErrCorruptEmbedding) {
					t.Errorf("expected ErrCorruptEmbedding, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tc.wantLen {
				t.Errorf("expected %d values, got %d", tc.wantLen, len(got))
			}
		})
	}
}
