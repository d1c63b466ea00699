package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/mockdaq/internal/sample"
)

// ErrNoSamples is returned by FetchOrderedSamples when sensor_data is empty.
var ErrNoSamples = errors.New("no samples stored")

// ErrUnknownTable is returned for table names outside the sample schema.
var ErrUnknownTable = errors.New("unknown table")

// SensorDataTable holds the combined samples replay reads from.
const SensorDataTable = "sensor_data"

type table struct {
	name    string
	columns []string
	values  func(s sample.Sample) []any
}

// Columns after id, session_id and timestamp.
var tables = []table{
	{
		name:    SensorDataTable,
		columns: sample.Columns[2:],
		values: func(s sample.Sample) []any {
			vals := s.Values()
			out := make([]any, len(vals))
			for i, v := range vals {
				out[i] = v
			}
			return out
		},
	},
	{
		name:    "gps_data",
		columns: []string{"latitude", "longitude", "altitude"},
		values:  func(s sample.Sample) []any { return []any{s.Latitude, s.Longitude, s.Altitude} },
	},
	{
		name:    "accel_data",
		columns: []string{"accel_x", "accel_y", "accel_z"},
		values:  func(s sample.Sample) []any { return []any{s.AccelX, s.AccelY, s.AccelZ} },
	},
	{
		name:    "gyro_data",
		columns: []string{"gyro_x", "gyro_y", "gyro_z"},
		values:  func(s sample.Sample) []any { return []any{s.GyroX, s.GyroY, s.GyroZ} },
	},
	{
		name:    "dac_data",
		columns: []string{"dac_1", "dac_2", "dac_3", "dac_4"},
		values:  func(s sample.Sample) []any { return []any{s.DAC1, s.DAC2, s.DAC3, s.DAC4} },
	},
}

func lookupTable(name string) (table, bool) {
	for _, t := range tables {
		if t.name == name {
			return t, true
		}
	}
	return table{}, false
}

func (t table) insertSQL() string {
	cols := append([]string{"session_id", "timestamp"}, t.columns...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(cols, ", "), marks)
}

func (t table) selectSQL() string {
	cols := append([]string{"id", "session_id", "timestamp"}, t.columns...)
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(cols, ", "), t.name)
}

// TableNames lists every table in the sample schema, combined table first.
func TableNames() []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.name
	}
	return names
}

// ReplaceSamples clears every sample table and stores seq in sensor_data.
// With split set the readings are also written to the per-sensor tables.
// The whole replacement is one transaction. Timestamps are stored in
// sample.TimestampLayout so the TEXT ordering in FetchOrderedSamples is
// chronological; unparseable values are kept verbatim.
func (db *DB) ReplaceSamples(ctx context.Context, seq sample.Sequence, split bool) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, t := range tables {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+t.name); err != nil {
			return fmt.Errorf("failed to clear %s: %w", t.name, err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		"DELETE FROM sqlite_sequence WHERE name IN ("+quotedNames()+")"); err != nil {
		return fmt.Errorf("failed to reset id sequences: %w", err)
	}

	targets := tables[:1]
	if split {
		targets = tables
	}
	for _, t := range targets {
		if err = insertAll(ctx, tx, t, seq); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	return nil
}

func quotedNames() string {
	q := make([]string, len(tables))
	for i, t := range tables {
		q[i] = "'" + t.name + "'"
	}
	return strings.Join(q, ", ")
}

func insertAll(ctx context.Context, tx *sql.Tx, t table, seq sample.Sequence) error {
	stmt, err := tx.PrepareContext(ctx, t.insertSQL())
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", t.name, err)
	}
	defer stmt.Close()

	for i, s := range seq {
		args := append([]any{nullableID(s.SessionID), sample.NormalizeTimestamp(s.Timestamp)}, t.values(s)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert sample %d into %s: %w", i, t.name, err)
		}
	}
	return nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// FetchOrderedSamples reads sensor_data ordered by timestamp, ties broken by
// insertion order.
func (db *DB) FetchOrderedSamples(ctx context.Context) (sample.Sequence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, timestamp,
			latitude, longitude, altitude,
			accel_x, accel_y, accel_z,
			gyro_x, gyro_y, gyro_z,
			dac_1, dac_2, dac_3, dac_4
		FROM sensor_data
		ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var seq sample.Sequence
	for rows.Next() {
		var (
			s   sample.Sample
			sid sql.NullInt64
		)
		if err := rows.Scan(&sid, &s.Timestamp,
			&s.Latitude, &s.Longitude, &s.Altitude,
			&s.AccelX, &s.AccelY, &s.AccelZ,
			&s.GyroX, &s.GyroY, &s.GyroZ,
			&s.DAC1, &s.DAC2, &s.DAC3, &s.DAC4,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if sid.Valid {
			id := sid.Int64
			s.SessionID = &id
		}
		seq = append(seq, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, ErrNoSamples
	}
	return seq, nil
}

// TableInfo describes a populated sample table.
type TableInfo struct {
	Name string
	Rows int
}

// Tables returns the sample tables that currently hold rows.
func (db *DB) Tables(ctx context.Context) ([]TableInfo, error) {
	var out []TableInfo
	for _, t := range tables {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t.name, err)
		}
		if n > 0 {
			out = append(out, TableInfo{Name: t.name, Rows: n})
		}
	}
	return out, nil
}

// ReadTable returns the column names and every row of a sample table. Values
// are as the driver returns them: int64, float64, string or nil.
func (db *DB) ReadTable(ctx context.Context, name string) ([]string, [][]any, error) {
	t, ok := lookupTable(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}

	rows, err := db.QueryContext(ctx, t.selectSQL())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan %s row: %w", name, err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}
