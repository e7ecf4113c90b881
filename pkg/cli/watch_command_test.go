//go:build !integration

package cli

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchGrammarRebuildsOnChange(t *testing.T) {
	repo := newTestRepo(t)
	layout := workspace.Layout{Root: repo}
	grammarDir := filepath.Join(repo, "grammars", "json")

	orig := watchDebounce
	watchDebounce = 50 * time.Millisecond
	defer func() { watchDebounce = orig }()

	var runs atomic.Int32
	rebuilt := make(chan struct{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchGrammar(ctx, layout, "json", func(context.Context) error {
			runs.Add(1)
			rebuilt <- struct{}{}
			return nil
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(grammarDir, "src", "parser.c"), []byte("/* regenerated */"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(grammarDir, "grammar.js"), []byte("module.exports = grammar({name: 'json', rules: {}});\n"), 0o644))

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("grammar.js change did not trigger a rebuild")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Equal(t, int32(1), runs.Load(), "parser.c writes must not trigger rebuilds")
}

func TestWatchGrammarStopsOnLogWriteFailure(t *testing.T) {
	repo := newTestRepo(t)
	orig := watchDebounce
	watchDebounce = 10 * time.Millisecond
	defer func() { watchDebounce = orig }()

	done := make(chan error, 1)
	go func() {
		done <- watchGrammar(context.Background(), workspace.Layout{Root: repo}, "json", func(context.Context) error {
			return failure.New(failure.LogWriteFailed, "disk full", "")
		})
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(repo, "grammars", "json", "grammar.js"), []byte("// changed\n"), 0o644))

	select {
	case err := <-done:
		assert.Equal(t, failure.LogWriteFailed, failure.KindOf(err))
	case <-time.After(5 * time.Second):
		t.Fatal("watch should stop when the log cannot be written")
	}
}

func TestWatchGrammarValidation(t *testing.T) {
	repo := newTestRepo(t)
	layout := workspace.Layout{Root: repo}
	noop := func(context.Context) error { return nil }

	err := watchGrammar(context.Background(), layout, "../x", noop)
	assert.Equal(t, failure.InvalidName, failure.KindOf(err))

	err = watchGrammar(context.Background(), layout, "missing", noop)
	assert.Equal(t, failure.GrammarNotFound, failure.KindOf(err))
}

func TestIsWatchedSource(t *testing.T) {
	g, err := workspace.Resolve("/repo", "json", "linux")
	require.NoError(t, err)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"grammar write", fsnotify.Event{Name: g.GrammarFile, Op: fsnotify.Write}, true},
		{"c scanner create", fsnotify.Event{Name: filepath.Join(g.SrcDir, "scanner.c"), Op: fsnotify.Create}, true},
		{"cc scanner rename", fsnotify.Event{Name: filepath.Join(g.SrcDir, "scanner.cc"), Op: fsnotify.Rename}, true},
		{"generated parser", fsnotify.Event{Name: g.GeneratedParserPath, Op: fsnotify.Write}, false},
		{"grammar chmod", fsnotify.Event{Name: g.GrammarFile, Op: fsnotify.Chmod}, false},
		{"unrelated file", fsnotify.Event{Name: filepath.Join(g.SourceDir, "README.md"), Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isWatchedSource(g, tt.event))
		})
	}
}
