package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxFileSize is the size limit of a single log file
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

var numberedFileRegex = regexp.MustCompile(`^app-\d{4}-\d{2}-\d{2}_(\d{2})\.log$`)

// Options configures the global logger
type Options struct {
	Dir           string
	Level         slog.Level
	RetentionDays int
	MaxFileSize   int64
}

// RotatingLogger writes to one log file per day, opening a numbered sibling
// when the size limit is reached, and deletes files past the retention period.
type RotatingLogger struct {
	logDir      string
	currentFile *os.File
	currentDay  string
	retention   time.Duration
	maxFileSize int64
	currentSize atomic.Int64
	mu          sync.Mutex
	now         func() time.Time
	ctx         context.Context
	cancel      context.CancelFunc
	cleanupDone chan struct{}
	cleanupOn   atomic.Bool
}

// NewRotatingLogger creates a rotating logger. A maxFileSize of 0 disables size rotation.
func NewRotatingLogger(logDir string, retentionDays int, maxFileSize int64) *RotatingLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		maxFileSize: maxFileSize,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// rotate opens the file for day (caller holds mu)
func (rl *RotatingLogger) rotate(day string, sizeExceeded bool) error {
	if rl.currentFile != nil {
		if err := rl.currentFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file during rotation: %v\n", err)
		}
		rl.currentFile = nil
	}

	name := rl.pickFile(day, sizeExceeded)
	path := filepath.Join(rl.logDir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rl.currentFile = file
	rl.currentDay = day
	rl.currentSize.Store(0)
	if info, err := file.Stat(); err == nil {
		rl.currentSize.Store(info.Size())
	}

	return nil
}

// pickFile returns the base file of the day, or the next numbered one when full
func (rl *RotatingLogger) pickFile(day string, sizeExceeded bool) string {
	base := fmt.Sprintf("app-%s.log", day)

	if !sizeExceeded {
		info, err := os.Stat(filepath.Join(rl.logDir, base))
		if err != nil || rl.maxFileSize == 0 || info.Size() < rl.maxFileSize {
			return base
		}
	}

	highest, lastName, lastSize := rl.highestNumbered(day)
	if lastName != "" && lastSize < rl.maxFileSize && !sizeExceeded {
		return lastName
	}
	return fmt.Sprintf("app-%s_%02d.log", day, highest+1)
}

func (rl *RotatingLogger) highestNumbered(day string) (int, string, int64) {
	matches, _ := filepath.Glob(filepath.Join(rl.logDir, fmt.Sprintf("app-%s_??.log", day)))

	highest := 0
	var lastName string
	var lastSize int64
	for _, match := range matches {
		m := numberedFileRegex.FindStringSubmatch(filepath.Base(match))
		if len(m) < 2 {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		if num <= highest {
			continue
		}
		highest = num
		lastName = filepath.Base(match)
		lastSize = 0
		if info, err := os.Stat(match); err == nil {
			lastSize = info.Size()
		}
	}
	return highest, lastName, lastSize
}

// Write implements io.Writer, rotating on day change or when p would pass the size limit
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	day := dayKey(rl.now())
	sizeExceeded := false
	needsRotation := rl.currentFile == nil || rl.currentDay != day

	if !needsRotation && rl.maxFileSize > 0 {
		size := rl.currentSize.Load()
		if size > 0 && size+int64(len(p)) > rl.maxFileSize {
			needsRotation = true
			sizeExceeded = true
		}
	}

	if needsRotation {
		if err := rl.rotate(day, sizeExceeded); err != nil {
			return 0, err
		}
	}

	n, err := rl.currentFile.Write(p)
	rl.currentSize.Add(int64(n))
	return n, err
}

// CleanupOldLogs removes log files last modified before the retention period
func (rl *RotatingLogger) CleanupOldLogs() (int, error) {
	if rl.retention <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := rl.now().Add(-rl.retention)
	deleted := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(rl.logDir, name)); err == nil {
				deleted++
			}
		}
	}

	return deleted, nil
}

func (rl *RotatingLogger) startCleanup(interval time.Duration) {
	rl.cleanupOn.Store(true)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(rl.cleanupDone)

		for {
			select {
			case <-rl.ctx.Done():
				return
			case <-ticker.C:
				if n, err := rl.CleanupOldLogs(); err != nil {
					fmt.Fprintf(os.Stderr, "failed to clean up old logs: %v\n", err)
				} else if n > 0 {
					// console only, the file handler would recurse into Write
					fmt.Printf("Cleaned up %d old log files\n", n)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and closes the current file
func (rl *RotatingLogger) Close() error {
	rl.cancel()

	if rl.cleanupOn.Load() {
		select {
		case <-rl.cleanupDone:
		case <-time.After(2 * time.Second):
		}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.currentFile != nil {
		err := rl.currentFile.Close()
		rl.currentFile = nil
		return err
	}
	return nil
}

// newLogger builds a console text logger, plus a JSON file logger when opts.Dir is set.
// The rotating logger is nil when no file is used.
func newLogger(opts Options) (*slog.Logger, *RotatingLogger) {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	consoleHandler := slog.NewTextHandler(os.Stdout, handlerOpts)

	if opts.Dir == "" {
		return slog.New(consoleHandler), nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to create logs directory", "dir", opts.Dir, "error", err)
		return logger, nil
	}

	maxSize := opts.MaxFileSize
	if maxSize < 0 {
		maxSize = DefaultMaxFileSize
	}

	rotating := NewRotatingLogger(opts.Dir, opts.RetentionDays, maxSize)

	rotating.mu.Lock()
	err := rotating.rotate(dayKey(rotating.now()), false)
	rotating.mu.Unlock()
	if err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to initialize rotating logger", "error", err)
		return logger, nil
	}

	rotating.startCleanup(6 * time.Hour)

	fileHandler := slog.NewJSONHandler(rotating, handlerOpts)
	return slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}), rotating
}

// ParseLevel maps debug, info, warn (or warning) and error, in any case, to a slog level.
// An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// multiHandler fans records out to several handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
