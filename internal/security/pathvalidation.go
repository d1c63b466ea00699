// Package security validates the paths mockdaq writes exports, reports and
// backups to.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonicalPath resolves path to an absolute, symlink-free form. Components
// that do not exist yet are appended to the nearest existing ancestor, so a
// symlinked parent cannot smuggle a new file outside its directory.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	existing, rest := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

// ValidatePathWithinDirectory returns an error if filePath, after resolving
// "..", and symlinks, lies outside dir.
func ValidatePathWithinDirectory(filePath, dir string) error {
	target, err := canonicalPath(filePath)
	if err != nil {
		return err
	}
	base, err := canonicalPath(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}

	rel, err := filepath.Rel(base, target)
	if err != nil {
		return fmt.Errorf("path is outside directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}
	return nil
}

// ValidateOutputPath accepts paths under the working directory or the temp
// directory. When exts is non-empty the file extension must be one of them
// (case-insensitive, with the leading dot).
func ValidateOutputPath(filePath string, exts ...string) error {
	if len(exts) > 0 {
		ext := strings.ToLower(filepath.Ext(filePath))
		ok := false
		for _, e := range exts {
			if ext == strings.ToLower(e) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unsupported output extension %q: expected one of %v", ext, exts)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	for _, dir := range []string{cwd, os.TempDir()} {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("output path %s must be within the working directory or %s", filePath, os.TempDir())
}

const maxFilenameLen = 128

// SanitizeFilename maps s to a name made of ASCII letters, digits, '.', '_'
// and '-'. Runs of other characters become one underscore. Empty results
// become "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		safe := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !safe {
			pendingUnderscore = true
			continue
		}
		if pendingUnderscore && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingUnderscore = false
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
