package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/mockdaq/internal/db"
	"github.com/banshee-data/mockdaq/internal/display"
	"github.com/banshee-data/mockdaq/internal/generate"
	"github.com/banshee-data/mockdaq/internal/security"
	"github.com/banshee-data/mockdaq/internal/timeutil"
)

// floatFlag is a float flag that remembers whether it was given.
type floatFlag struct {
	v *float64
}

func (f *floatFlag) String() string {
	if f == nil || f.v == nil {
		return ""
	}
	return strconv.FormatFloat(*f.v, 'g', -1, 64)
}

func (f *floatFlag) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.v = &v
	return nil
}

func runGenerate(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("generate", out)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	n := fs.Int("n", generate.DefaultCount, "Number of samples")
	interval := fs.Duration("interval", generate.DefaultInterval, "Time between sample timestamps")
	seed := fs.Uint64("seed", 0, "Random seed (0 uses the clock)")
	split := fs.Bool("split", false, "Also write the per-sensor gps/accel/gyro/dac tables")
	tz := fs.String("tz", "", "tz database zone for timestamps (default host zone)")
	var lat, lon, alt floatFlag
	fs.Var(&lat, "lat", "Latitude seed; samples fall within ±1 degree")
	fs.Var(&lon, "lon", "Longitude seed; samples fall within ±1 degree")
	fs.Var(&alt, "alt", "Altitude seed; samples fall within ±10 m")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n <= 0 {
		return fmt.Errorf("-n must be positive, got %d", *n)
	}
	if *interval <= 0 {
		return fmt.Errorf("-interval must be positive, got %s", *interval)
	}

	start, err := timeutil.InZone(time.Now(), *tz)
	if err != nil {
		return err
	}

	gen := generate.New(generate.Config{LatSeed: lat.v, LonSeed: lon.v, AltSeed: alt.v, Seed: *seed})
	seq := gen.Generate(*n, start, *interval)

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.ReplaceSamples(ctx, seq, *split); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s samples to %s\n", humanize.Comma(int64(len(seq))), *dbPath)
	return nil
}

func runShow(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("show", out)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	only := fs.String("table", "", "Show only this table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	names := []string{*only}
	if *only == "" {
		tables, err := database.Tables(ctx)
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			fmt.Fprintf(out, "No samples in %s\n", *dbPath)
			return nil
		}
		names = names[:0]
		for _, t := range tables {
			names = append(names, t.Name)
		}
	}

	for i, name := range names {
		columns, rows, err := database.ReadTable(ctx, name)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "Table: %s (%d rows)\n", name, len(rows))
		if err := display.WriteTable(out, columns, rows); err != nil {
			return err
		}
	}
	return nil
}

func runExport(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("export", out)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	outDir := fs.String("out-dir", ".", "Directory for the CSV files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := security.ValidateOutputPath(*outDir); err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	paths, err := database.ExportDir(ctx, *outDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintf(out, "No samples in %s\n", *dbPath)
		return nil
	}
	for _, p := range paths {
		size := "?"
		if fi, err := os.Stat(p); err == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		fmt.Fprintf(out, "Exported %s (%s)\n", p, size)
	}
	return nil
}

func runMigrate(args []string, out io.Writer) error {
	fs := newFlagSet("migrate", out)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(out, "Usage: mockdaq migrate [-db path] up|down|version")
		return errUsage
	}

	database, err := db.OpenDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	switch fs.Arg(0) {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
	case "version":
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n", fs.Arg(0))
		return errUsage
	}

	v, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Schema version %d (dirty=%t)\n", v, dirty)
	return nil
}
