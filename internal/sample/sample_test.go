package sample

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func int64Ptr(v int64) *int64 { return &v }

func fixture() Sample {
	return Sample{
		SessionID: int64Ptr(42),
		Timestamp: "2025-03-01T12:00:00.250000",
		Latitude:  44.56, Longitude: -123.26, Altitude: 71.123456789,
		AccelX: -9.81, AccelY: 0.000012, AccelZ: 3.5,
		GyroX: 499.99, GyroY: -250.5, GyroZ: 0,
		DAC1: 0.1, DAC2: 1.0 / 3.0, DAC3: 4.999999, DAC4: 5,
	}
}

func TestEncode_FieldOrder(t *testing.T) {
	line := Encode(fixture())

	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("encoded line %q missing newline terminator", line)
	}
	parts := strings.Split(strings.TrimSuffix(line, "\n"), ",")
	if len(parts) != FieldCount {
		t.Fatalf("got %d fields, want %d", len(parts), FieldCount)
	}
	want := []string{"42", "2025-03-01T12:00:00.250000", "44.56", "-123.26", "71.123456789"}
	if diff := cmp.Diff(want, parts[:5]); diff != "" {
		t.Errorf("leading fields mismatch (-want +got):\n%s", diff)
	}
	if parts[14] != "5" {
		t.Errorf("dac_4 = %q, want %q", parts[14], "5")
	}
}

func TestEncode_NullSession(t *testing.T) {
	s := fixture()
	s.SessionID = nil
	line := Encode(s)
	if !strings.HasPrefix(line, NullToken+",") {
		t.Errorf("line %q should start with %s", line, NullToken)
	}
}

func TestRoundTrip(t *testing.T) {
	withNull := fixture()
	withNull.SessionID = nil

	for name, in := range map[string]Sample{
		"session id": fixture(),
		"null id":    withNull,
		"zero value": {Timestamp: "2025-01-01T00:00:00"},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := ParseLine(Encode(in))
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if diff := cmp.Diff(in, out); diff != "" {
				t.Errorf("round trip mismatch (-in +out):\n%s", diff)
			}
		})
	}
}

func TestParseLine_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"too few fields", "1,2025-01-01T00:00:00,1,2\n", "field count"},
		{"bad session", "x" + strings.Repeat(",1", FieldCount-1), "session_id"},
		{"bad float", "NULL,ts,1,2,abc,4,5,6,7,8,9,10,11,12,13", "altitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}

	_, err := ParseLine("a,b")
	if !errors.Is(err, ErrFieldCount) {
		t.Errorf("ParseLine(short) error = %v, want ErrFieldCount", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-01T12:00:00.250000", time.Date(2025, 3, 1, 12, 0, 0, 250000000, time.UTC)},
		{"2025-03-01T12:00:00", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"2025-03-01T12:00:00Z", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"2025-03-01T14:00:00.5+02:00", time.Date(2025, 3, 1, 12, 0, 0, 500000000, time.UTC)},
		{"2025-03-01 12:00:00.123456789", time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "yesterday", "2025-13-01T00:00:00", "1700000000"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Errorf("ParseTimestamp(%q) expected error", bad)
		}
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2025-03-01T12:00:00.250000", "2025-03-01T12:00:00.250000"},
		{"2025-03-01T12:00:00", "2025-03-01T12:00:00.000000"},
		{"2025-03-01 12:00:00.5", "2025-03-01T12:00:00.500000"},
		{"2025-03-01T14:00:00+02:00", "2025-03-01T12:00:00.000000"},
		{"2025-03-01 07:00:01-05:00", "2025-03-01T12:00:01.000000"},
		{"not a time", "not a time"},
	}
	for _, tt := range tests {
		if got := NormalizeTimestamp(tt.in); got != tt.want {
			t.Errorf("NormalizeTimestamp(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
