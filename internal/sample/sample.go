// Package sample defines the sensor reading replayed to the collector and its
// newline-delimited CSV wire encoding.
package sample

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NullToken is the wire representation of a missing session id.
const NullToken = "NULL"

// Columns lists the field names in wire and storage order.
var Columns = []string{
	"session_id", "timestamp",
	"latitude", "longitude", "altitude",
	"accel_x", "accel_y", "accel_z",
	"gyro_x", "gyro_y", "gyro_z",
	"dac_1", "dac_2", "dac_3", "dac_4",
}

// FieldCount is the number of comma separated fields in an encoded sample.
var FieldCount = len(Columns)

// ErrFieldCount is returned by ParseLine when a line has the wrong shape.
var ErrFieldCount = errors.New("unexpected field count")

// Sample is one timestamped reading across GPS, IMU and DAC channels.
type Sample struct {
	SessionID *int64 `json:"session_id"`
	Timestamp string `json:"timestamp"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"` // metres

	AccelX float64 `json:"accel_x"` // m/s²
	AccelY float64 `json:"accel_y"`
	AccelZ float64 `json:"accel_z"`

	GyroX float64 `json:"gyro_x"` // deg/s
	GyroY float64 `json:"gyro_y"`
	GyroZ float64 `json:"gyro_z"`

	DAC1 float64 `json:"dac_1"` // volts
	DAC2 float64 `json:"dac_2"`
	DAC3 float64 `json:"dac_3"`
	DAC4 float64 `json:"dac_4"`
}

// Sequence is an ordered run of samples, oldest first.
type Sequence []Sample

// Values returns the numeric measurement fields in column order (everything
// after session id and timestamp).
func (s Sample) Values() []float64 {
	return []float64{
		s.Latitude, s.Longitude, s.Altitude,
		s.AccelX, s.AccelY, s.AccelZ,
		s.GyroX, s.GyroY, s.GyroZ,
		s.DAC1, s.DAC2, s.DAC3, s.DAC4,
	}
}

// Fields renders every field in its natural text form, in column order.
func (s Sample) Fields() []string {
	out := make([]string, 0, FieldCount)
	if s.SessionID == nil {
		out = append(out, NullToken)
	} else {
		out = append(out, strconv.FormatInt(*s.SessionID, 10))
	}
	out = append(out, s.Timestamp)
	for _, v := range s.Values() {
		out = append(out, FormatFloat(v))
	}
	return out
}

// Encode returns the wire line for s, terminated by a newline.
func Encode(s Sample) string {
	return strings.Join(s.Fields(), ",") + "\n"
}

// FormatFloat renders f in the shortest form that parses back to the same
// value.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ParseLine is the inverse of Encode. A trailing newline (and carriage
// return) is tolerated.
func ParseLine(line string) (Sample, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, ",")
	if len(parts) != FieldCount {
		return Sample{}, fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(parts), FieldCount)
	}

	var s Sample
	if parts[0] != NullToken {
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("failed to parse session_id: %w", err)
		}
		s.SessionID = &id
	}
	s.Timestamp = parts[1]

	dst := []*float64{
		&s.Latitude, &s.Longitude, &s.Altitude,
		&s.AccelX, &s.AccelY, &s.AccelZ,
		&s.GyroX, &s.GyroY, &s.GyroZ,
		&s.DAC1, &s.DAC2, &s.DAC3, &s.DAC4,
	}
	for i, p := range dst {
		v, err := strconv.ParseFloat(parts[i+2], 64)
		if err != nil {
			return Sample{}, fmt.Errorf("failed to parse %s: %w", Columns[i+2], err)
		}
		*p = v
	}
	return s, nil
}

// TimestampLayout is the canonical stored form: ISO-8601 UTC with
// microseconds and no zone. Values in this layout sort chronologically as
// text.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// timestampLayouts are tried in order by ParseTimestamp. Fractional seconds
// are accepted by every layout when parsing.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp, with or without a zone and
// with either 'T' or a space between date and time. Zone-less values are read
// as UTC.
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", ts)
}

// NormalizeTimestamp rewrites ts in TimestampLayout, converting zoned values
// to UTC. A value ParseTimestamp rejects is returned unchanged.
func NormalizeTimestamp(ts string) string {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format(TimestampLayout)
}
