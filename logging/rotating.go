package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const cleanupInterval = 24 * time.Hour

// RotatingLogger writes to app-YYYY-Www.log, moving to a new file every ISO
// week and, when a size limit is set, to app-YYYY-Www_NN.log once the
// current file is full. Files older than the retention are removed daily.
type RotatingLogger struct {
	dir       string
	retention time.Duration
	maxSize   int64

	mu   sync.Mutex
	file *os.File
	name string
	week string
	size int64

	closed    bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRotatingLogger creates dir if needed and opens this week's file.
func NewRotatingLogger(dir string, retentionWeeks int, maxFileSize int64) (*RotatingLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rl := &RotatingLogger{
		dir:       dir,
		retention: time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxSize:   maxFileSize,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if err := rl.rotate(weekKey(time.Now()), 0); err != nil {
		return nil, err
	}

	go rl.cleanupLoop()
	return rl, nil
}

func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.closed {
		return 0, os.ErrClosed
	}

	week := weekKey(time.Now())
	full := rl.maxSize > 0 && rl.size > 0 && rl.size+int64(len(p)) > rl.maxSize
	if week != rl.week || full || rl.file == nil {
		if err := rl.rotate(week, int64(len(p))); err != nil {
			return 0, err
		}
	}

	n, err := rl.file.Write(p)
	rl.size += int64(n)
	return n, err
}

// CurrentFile returns the name of the file being written.
func (rl *RotatingLogger) CurrentFile() string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.name
}

// rotate opens the first file of week with room for next bytes.
// Caller holds mu.
func (rl *RotatingLogger) rotate(week string, next int64) error {
	if rl.file != nil {
		rl.file.Close()
		rl.file = nil
	}

	for seq := 0; seq < 100; seq++ {
		name := fmt.Sprintf("app-%s.log", week)
		if seq > 0 {
			name = fmt.Sprintf("app-%s_%02d.log", week, seq)
		}
		path := filepath.Join(rl.dir, name)

		var size int64
		info, err := os.Stat(path)
		switch {
		case err == nil:
			size = info.Size()
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("failed to stat log file %s: %w", path, err)
		}
		if rl.maxSize > 0 && size > 0 && (size >= rl.maxSize || size+next > rl.maxSize) {
			continue
		}

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		rl.file, rl.name, rl.week, rl.size = file, name, week, size
		return nil
	}
	return fmt.Errorf("no free log file slot for week %s", week)
}

// Cleanup removes log files last modified before the retention period.
func (rl *RotatingLogger) Cleanup() (int, error) {
	entries, err := os.ReadDir(rl.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rl.retention)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		if name == rl.CurrentFile() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(rl.dir, name)) == nil {
			removed++
		}
	}
	return removed, nil
}

func (rl *RotatingLogger) cleanupLoop() {
	defer close(rl.done)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			// Goes to stderr; logging through slog here would write into this file.
			if n, err := rl.Cleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
			} else if n > 0 {
				fmt.Fprintf(os.Stderr, "removed %d old log files\n", n)
			}
		}
	}
}

// Close stops the cleanup loop and closes the current file.
func (rl *RotatingLogger) Close() error {
	var err error
	rl.closeOnce.Do(func() {
		close(rl.stop)
		<-rl.done

		rl.mu.Lock()
		defer rl.mu.Unlock()
		rl.closed = true
		if rl.file != nil {
			err = rl.file.Close()
			rl.file = nil
		}
	})
	return err
}
