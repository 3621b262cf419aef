package logcore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/pierrec/lz4/v4"
)

var levelColor = map[Level]*color.Color{
	LevelFatal: color.New(color.FgMagenta),
	LevelError: color.New(color.FgRed),
	LevelWarn:  color.New(color.FgYellow),
	LevelInfo:  color.New(color.FgCyan),
	LevelDebug: color.New(color.FgWhite),
	LevelTrace: color.New(color.FgHiBlack),
}

// FileSink writes entries to a file, pretty-printing with ANSI color when
// prettyPrint is set, and rotating to a single lz4-compressed numbered
// backup once the file exceeds maxSizeBytes.
type FileSink struct {
	mu sync.Mutex

	path        string
	maxBytes    int64
	prettyPrint bool

	file    *os.File
	written int64
}

// NewFileSink opens (creating if absent) the file sink at path.
func NewFileSink(path string, maxSizeBytes int64, prettyPrint bool) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logcore: open file sink: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("logcore: stat file sink: %w", err)
	}

	return &FileSink{
		path:        path,
		maxBytes:    maxSizeBytes,
		prettyPrint: prettyPrint,
		file:        f,
		written:     info.Size(),
	}, nil
}

// Write implements FlushFunc-compatible delivery for a batch of entries.
func (s *FileSink) Write(batch []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range batch {
		line := s.render(entry)

		n, err := s.file.WriteString(line)
		if err != nil {
			return
		}

		s.written += int64(n)
	}

	if s.maxBytes > 0 && s.written >= s.maxBytes {
		_ = s.rotateLocked()
	}
}

func (s *FileSink) render(entry Entry) string {
	if !s.prettyPrint {
		return fmt.Sprintf("%d [%s] %s %v\n", entry.TimeMs, entry.Level, entry.Message, entry.Fields)
	}

	c, ok := levelColor[entry.Level]
	if !ok {
		c = color.New(color.Reset)
	}

	return c.Sprintf("%d [%s] %s %v\n", entry.TimeMs, entry.Level, entry.Message, entry.Fields)
}

// rotateLocked closes the current file, compresses it into a single
// numbered backup (discarding any prior backup), and reopens an empty
// file at the original path. Caller must hold s.mu.
func (s *FileSink) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("logcore: close before rotate: %w", err)
	}

	backupPath := s.path + ".1.lz4"

	if err := compressToBackup(s.path, backupPath); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("logcore: reopen after rotate: %w", err)
	}

	s.file = f
	s.written = 0

	return nil
}

func compressToBackup(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("logcore: open rotation source: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("logcore: open rotation backup: %w", err)
	}
	defer dst.Close()

	w := lz4.NewWriter(dst)
	defer w.Close()

	if _, err := io.Copy(w, bufio.NewReader(src)); err != nil {
		return fmt.Errorf("logcore: compress rotation backup: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.file.Close()
}
