// Package logger provides namespaced debug logging in the style of the
// "debug" npm package. Loggers are disabled unless their namespace matches
// the DEBUG environment variable, and all output goes to stderr so it never
// mixes with command output on stdout.
//
//	DEBUG=*                          enable everything
//	DEBUG=workflow:*                 enable one area
//	DEBUG=workflow:*,-workflow:parse exclude a single logger
package logger

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/grammatic/grammatic/pkg/tty"
)

// Logger writes debug messages for one namespace.
type Logger struct {
	namespace string
	enabled   bool
	color     string

	mu   sync.Mutex
	last time.Time
}

var (
	outputMu sync.Mutex
	output   io.Writer = os.Stderr
)

// 256-colour palette entries that stay readable on light and dark terminals.
var palette = []int{20, 26, 32, 38, 41, 44, 62, 68, 74, 99, 135, 166, 170, 172, 178, 203}

// New creates a logger for the namespace. The DEBUG variable is read once,
// at construction time.
func New(namespace string) *Logger {
	l := &Logger{
		namespace: namespace,
		enabled:   computeEnabled(namespace, os.Getenv("DEBUG")),
	}
	if tty.IsStderrTerminal() && os.Getenv("DEBUG_COLORS") != "0" {
		l.color = fmt.Sprintf("\x1b[38;5;%dm", pickColor(namespace))
	}
	return l
}

// Enabled reports whether the logger emits output. Use it to guard
// expensive argument construction.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Printf formats like fmt.Printf and writes one line.
func (l *Logger) Printf(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.write(fmt.Sprintf(format, args...))
}

// Print concatenates its arguments like fmt.Sprint and writes one line.
func (l *Logger) Print(args ...any) {
	if !l.enabled {
		return
	}
	l.write(fmt.Sprint(args...))
}

func (l *Logger) write(msg string) {
	l.mu.Lock()
	now := time.Now()
	var delta time.Duration
	if !l.last.IsZero() {
		delta = now.Sub(l.last)
	}
	l.last = now
	l.mu.Unlock()

	var line string
	if l.color != "" {
		line = fmt.Sprintf("%s%s\x1b[0m %s %s+%s\x1b[0m\n", l.color, l.namespace, msg, l.color, formatDelta(delta))
	} else {
		line = fmt.Sprintf("%s %s +%s\n", l.namespace, msg, formatDelta(delta))
	}

	outputMu.Lock()
	defer outputMu.Unlock()
	_, _ = io.WriteString(output, line)
}

// SetOutput redirects all loggers, returning a function that restores the
// previous writer. Intended for tests.
func SetOutput(w io.Writer) func() {
	outputMu.Lock()
	prev := output
	output = w
	outputMu.Unlock()
	return func() {
		outputMu.Lock()
		output = prev
		outputMu.Unlock()
	}
}

func formatDelta(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.1fm", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.String()
	}
}

func pickColor(namespace string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(namespace))
	return palette[h.Sum32()%uint32(len(palette))]
}

// computeEnabled evaluates a DEBUG pattern list against a namespace.
// Exclusions (prefixed with '-') win over inclusions.
func computeEnabled(namespace, debugEnv string) bool {
	if debugEnv == "" {
		return false
	}

	enabled := false
	for _, pattern := range strings.Split(debugEnv, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if strings.HasPrefix(pattern, "-") {
			if matchPattern(namespace, pattern[1:]) {
				return false
			}
			continue
		}
		if matchPattern(namespace, pattern) {
			enabled = true
		}
	}
	return enabled
}

// matchPattern supports '*' wildcards anywhere in the pattern.
func matchPattern(namespace, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return namespace == pattern
	}

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(namespace, parts[0]) {
		return false
	}
	rest := namespace[len(parts[0]):]
	for i := 1; i < len(parts); i++ {
		part := parts[i]
		if i == len(parts)-1 {
			return strings.HasSuffix(rest, part)
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return true
}
