package logging

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunFileExt is the extension of per-run log files.
const RunFileExt = ".log"

// RunFile is the log file of one terminal UI session.
type RunFile struct {
	Dir   string
	RunID string
	Path  string
	file  *os.File
}

// NewRunFile creates <baseDir>/<project-slug>/<run-id>.log. The project slug
// is derived from workDir so runs from different directories stay apart.
func NewRunFile(baseDir, workDir string) (*RunFile, error) {
	dir, err := FindLogDir(baseDir, workDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	id := runID()
	path := filepath.Join(dir, id+RunFileExt)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	return &RunFile{
		Dir:   dir,
		RunID: id,
		Path:  path,
		file:  file,
	}, nil
}

// Writer returns the underlying log file writer.
func (r *RunFile) Writer() *os.File {
	return r.file
}

// Close closes the log file.
func (r *RunFile) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// FindLogDir returns the run log directory for workDir without creating it.
func FindLogDir(baseDir, workDir string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("log base dir is empty")
	}

	if workDir == "" {
		workDir = "."
	}
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}

	return filepath.Join(resolveBaseDir(baseDir, workDir), projectSlug(workDir)), nil
}

func resolveBaseDir(baseDir, workDir string) string {
	if filepath.IsAbs(baseDir) {
		return filepath.Clean(baseDir)
	}
	return filepath.Clean(filepath.Join(workDir, baseDir))
}

func projectSlug(root string) string {
	return fmt.Sprintf("%s-%s", slugify(filepath.Base(root)), hashPath(root))
}

func slugify(input string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, c := range []byte(input) {
		valid := (c >= 'A' && c <= 'Z') ||
			(c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') ||
			c == '.' || c == '_' || c == '-'
		if !valid {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteByte(c)
		lastUnderscore = false
	}

	slug := strings.Trim(b.String(), "_")
	if slug == "" || slug == "." {
		return "project"
	}
	return slug
}

func hashPath(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:8]
}

func runID() string {
	return fmt.Sprintf("%s-%d", time.Now().UTC().Format("20060102-150405"), os.Getpid())
}
