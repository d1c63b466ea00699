package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/mockdaq/internal/sample"
	"github.com/banshee-data/mockdaq/internal/security"
)

// ExportCSV writes a header and every row of the named table to w. NULL
// becomes an empty field. It returns the number of data rows written.
func (db *DB) ExportCSV(ctx context.Context, name string, w io.Writer) (int, error) {
	cols, rows, err := db.ReadTable(ctx, name)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return 0, err
	}
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, v := range row {
			record[i] = csvField(v)
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to write csv: %w", err)
	}
	return len(rows), nil
}

func csvField(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return sample.FormatFloat(x)
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// ExportDir writes one <table>.csv per populated table into dir, creating it
// if needed, and returns the paths written.
func (db *DB) ExportDir(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	infos, err := db.Tables(ctx)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, info := range infos {
		path := filepath.Join(dir, security.SanitizeFilename(info.Name)+".csv")
		if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
			return paths, err
		}
		if err := db.exportFile(ctx, info.Name, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (db *DB) exportFile(ctx context.Context, name, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = db.ExportCSV(ctx, name, f)
	return err
}
