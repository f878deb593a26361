package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// followInterval is how often TailLog polls for new data when following.
const followInterval = 100 * time.Millisecond

// LogRun describes one run log file.
type LogRun struct {
	RunID   string
	Path    string
	ModTime time.Time
	Size    int64
}

// FindLogRuns lists the run logs in logDir, newest first. A missing
// directory yields no runs.
func FindLogRuns(logDir string) ([]LogRun, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir: %w", err)
	}

	var runs []LogRun
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), RunFileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, LogRun{
			RunID:   strings.TrimSuffix(entry.Name(), RunFileExt),
			Path:    filepath.Join(logDir, entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].ModTime.Equal(runs[j].ModTime) {
			return runs[i].RunID > runs[j].RunID
		}
		return runs[i].ModTime.After(runs[j].ModTime)
	})
	return runs, nil
}

// FindLatestLog returns the newest run log in logDir, or "" if there is none.
func FindLatestLog(logDir string) (string, error) {
	runs, err := FindLogRuns(logDir)
	if err != nil || len(runs) == 0 {
		return "", err
	}
	return runs[0].Path, nil
}

// TailLog copies the last n lines of path to w (all lines when n <= 0).
// With follow set it keeps copying new data until ctx is done.
func TailLog(ctx context.Context, w io.Writer, path string, n int, follow bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n > 0 {
		if err := writeLastLines(w, file, n); err != nil {
			return err
		}
	} else if _, err := io.Copy(w, file); err != nil {
		return err
	}

	if !follow {
		return nil
	}

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := io.Copy(w, file); err != nil {
				return err
			}
		}
	}
}

// writeLastLines writes the final n lines of r and leaves r at EOF.
func writeLastLines(w io.Writer, r io.Reader, n int) error {
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	for _, line := range ring {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
