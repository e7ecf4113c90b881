package provenance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
)

var provenanceLog = logger.New("provenance:logger")

// Sink receives one serialised line per event.
type Sink interface {
	WriteLine(stream Stream, line []byte) error
}

// FileSink appends to <Dir>/<stream>.jsonl. Each write opens, appends and
// closes the file; no handle is held between events. Writers in separate
// processes are not coordinated and must be serialised by the caller.
type FileSink struct {
	Dir string
}

// Path returns the file backing stream.
func (s FileSink) Path(stream Stream) string {
	return filepath.Join(s.Dir, string(stream)+".jsonl")
}

func (s FileSink) WriteLine(stream Stream, line []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", s.Dir, err)
	}
	path := s.Path(stream)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// MemorySink keeps lines in memory.
type MemorySink struct {
	mu    sync.Mutex
	lines map[Stream][]string
	// Err, when set, is returned from every write.
	Err error
}

func (s *MemorySink) WriteLine(stream Stream, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if s.lines == nil {
		s.lines = make(map[Stream][]string)
	}
	s.lines[stream] = append(s.lines[stream], string(line))
	return nil
}

// Lines returns the lines written to stream.
func (s *MemorySink) Lines(stream Stream) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines[stream]...)
}

// Logger stamps, validates and appends events.
type Logger struct {
	sink  Sink
	now   func() time.Time
	newID func() string

	mu   sync.Mutex
	last time.Time
}

// NewLogger creates a Logger writing to sink.
func NewLogger(sink Sink) *Logger {
	return &Logger{
		sink:  sink,
		now:   time.Now,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// NewFileLogger creates a Logger appending to JSONL files in dir.
func NewFileLogger(dir string) *Logger {
	return NewLogger(FileSink{Dir: dir})
}

// SetClock replaces the time source.
func (l *Logger) SetClock(now func() time.Time) {
	l.now = now
}

// Append stamps ev with an ID and a timestamp that never goes backwards
// within this process, validates it and writes it as one line. A malformed
// event is rejected with ValidationError; a sink failure is LogWriteFailed.
func (l *Logger) Append(ev Event) error {
	h := ev.EventHeader()

	l.mu.Lock()
	defer l.mu.Unlock()

	if h.EventID == "" {
		h.EventID = l.newID()
	}
	ts := l.now().UTC().Round(0)
	if ts.Before(l.last) {
		ts = l.last
	}
	h.Timestamp = ts

	if err := Validate(ev); err != nil {
		provenanceLog.Printf("Rejected %s event for %s: %v", h.EventType, h.Grammar, err)
		return err
	}

	line, err := Marshal(ev)
	if err != nil {
		return failure.Wrap(failure.ValidationError, err, "failed to serialise event", "")
	}

	if err := l.sink.WriteLine(ev.Stream(), line); err != nil {
		provenanceLog.Printf("Write failed for %s event: %v", h.EventType, err)
		return failure.Wrap(failure.LogWriteFailed, err,
			fmt.Sprintf("failed to write %s event", h.EventType),
			"check that the logs directory is writable")
	}

	l.last = ts
	provenanceLog.Printf("Appended %s event %s for %s (%s)", h.EventType, h.EventID, h.Grammar, h.Status)
	return nil
}

// Marshal encodes ev as a single newline-terminated JSON line.
func Marshal(ev Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
