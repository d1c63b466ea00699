package timeutil

import (
	"testing"
	"time"
)

func TestInZone(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		zone     string
		wantHour int
	}{
		{"UTC", 12},
		{"Asia/Kolkata", 17},
		{"America/Lima", 7},
	}
	for _, tt := range tests {
		got, err := InZone(base, tt.zone)
		if err != nil {
			t.Fatalf("InZone(%q) error = %v", tt.zone, err)
		}
		if got.Hour() != tt.wantHour {
			t.Errorf("InZone(%q).Hour() = %d, want %d", tt.zone, got.Hour(), tt.wantHour)
		}
		if !got.Equal(base) {
			t.Errorf("InZone(%q) changed the instant: %v", tt.zone, got)
		}
	}

	local, err := InZone(base, "")
	if err != nil || local.Location() != time.Local {
		t.Errorf("InZone(\"\") = %v, %v; want host zone", local, err)
	}

	if _, err := InZone(base, "Mars/Olympus_Mons"); err == nil {
		t.Error("expected error for unknown zone")
	}
}
