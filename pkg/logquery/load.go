// Package logquery reads the provenance streams and answers filter and
// aggregate queries over them. Every query is a pure function over the
// loaded events; nothing is ever written back.
package logquery

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/provenance"
	"github.com/grammatic/grammatic/pkg/workspace"
	"github.com/sourcegraph/conc"
)

var loadLog = logger.New("logquery:load")

// maxLineBytes bounds one JSONL line; stderr excerpts keep events far below it.
const maxLineBytes = 4 << 20

// Log holds every event read from both streams, in file order.
type Log struct {
	Builds     []*provenance.BuildEvent
	Operations []*provenance.OperationEvent
	Parses     []*provenance.ParseEvent
}

// Load reads logs/builds.jsonl and logs/parses.jsonl under layout. Missing
// files are empty streams.
func Load(layout workspace.Layout) (*Log, error) {
	return LoadFiles(layout.BuildsLog(), layout.ParsesLog())
}

// LoadFiles reads the two streams in parallel.
func LoadFiles(buildsPath, parsesPath string) (*Log, error) {
	var (
		log                 Log
		buildsErr, parseErr error
		wg                  conc.WaitGroup
	)

	wg.Go(func() {
		buildsErr = readLines(buildsPath, func(lineNo int, line []byte) error {
			return log.decodeBuildsLine(buildsPath, lineNo, line)
		})
	})
	wg.Go(func() {
		parseErr = readLines(parsesPath, func(lineNo int, line []byte) error {
			var ev provenance.ParseEvent
			if err := decodeStrict(line, &ev); err != nil {
				return lineError(parsesPath, lineNo, err)
			}
			if ev.EventType != provenance.EventParse {
				return lineError(parsesPath, lineNo, fmt.Errorf("unexpected event_type %q", ev.EventType))
			}
			log.Parses = append(log.Parses, &ev)
			return nil
		})
	})
	wg.Wait()

	if err := errors.Join(buildsErr, parseErr); err != nil {
		return nil, err
	}
	loadLog.Printf("Loaded %d build, %d operation and %d parse events", len(log.Builds), len(log.Operations), len(log.Parses))
	return &log, nil
}

func (l *Log) decodeBuildsLine(path string, lineNo int, line []byte) error {
	var probe struct {
		EventType provenance.EventType `json:"event_type"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return lineError(path, lineNo, err)
	}

	switch probe.EventType {
	case provenance.EventBuild:
		var ev provenance.BuildEvent
		if err := decodeStrict(line, &ev); err != nil {
			return lineError(path, lineNo, err)
		}
		l.Builds = append(l.Builds, &ev)
	case provenance.EventGenerate, provenance.EventTest, provenance.EventDoctor:
		var ev provenance.OperationEvent
		if err := decodeStrict(line, &ev); err != nil {
			return lineError(path, lineNo, err)
		}
		l.Operations = append(l.Operations, &ev)
	default:
		return lineError(path, lineNo, fmt.Errorf("unknown event_type %q", probe.EventType))
	}
	return nil
}

func decodeStrict(line []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func lineError(path string, lineNo int, err error) error {
	return failure.Wrap(failure.ValidationError, err, fmt.Sprintf("invalid log entry at %s:%d", path, lineNo), "run 'grammatic logs check' for details")
}

// readLines calls fn for each non-blank line of path with its 1-based number.
func readLines(path string, fn func(lineNo int, line []byte) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// LatestBuildCommitFromFile is LatestBuildCommit over the builds stream at
// path. Lines that do not decode are skipped and an unreadable file yields
// "unknown", so a damaged log never blocks a parse.
func LatestBuildCommitFromFile(path, grammar string) string {
	var builds []*provenance.BuildEvent
	err := readLines(path, func(_ int, line []byte) error {
		var ev provenance.BuildEvent
		if json.Unmarshal(line, &ev) == nil && ev.EventType == provenance.EventBuild {
			builds = append(builds, &ev)
		}
		return nil
	})
	if err != nil {
		loadLog.Printf("Cannot read %s for version lookup: %v", path, err)
		return "unknown"
	}
	return LatestBuildCommit(builds, grammar)
}
