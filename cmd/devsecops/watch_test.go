package main

import (
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestNewWatchCmd(t *testing.T) {
	cmd := newWatchCmd(&globalOptions{})

	if cmd.Use != "watch" {
		t.Errorf("Use = %q, want 'watch'", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}

	// Check flags exist
	if cmd.Flags().Lookup("lint-only") == nil {
		t.Error("missing --lint-only flag")
	}

	if cmd.Flags().Lookup("debounce") == nil {
		t.Error("missing --debounce flag")
	}
}

func TestDebounceDefault(t *testing.T) {
	cmd := newWatchCmd(&globalOptions{})

	flag := cmd.Flags().Lookup("debounce")
	if flag == nil {
		t.Fatal("missing --debounce flag")
	}

	if flag.DefValue != "500ms" {
		t.Errorf("debounce default = %q, want '500ms'", flag.DefValue)
	}
}

func TestWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "devsecops.yaml")
	ctx := filepath.Join(dir, "devsecops.context.json")

	files, err := watchedFiles(cfg, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2", files)
	}
	if dirs := watchedDirs(files); len(dirs) != 1 || dirs[0] != dir {
		t.Errorf("dirs = %v, want [%s]", dirs, dir)
	}

	files, err = watchedFiles("", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("files = %v, want only the context file", files)
	}
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "devsecops.yaml")
	files := []string{cfg}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write to config", fsnotify.Event{Name: cfg, Op: fsnotify.Write}, true},
		{"config replaced by rename", fsnotify.Event{Name: cfg, Op: fsnotify.Rename}, true},
		{"chmod only", fsnotify.Event{Name: cfg, Op: fsnotify.Chmod}, false},
		{"editor swap file", fsnotify.Event{Name: cfg + ".swp", Op: fsnotify.Write}, false},
		{"other file", fsnotify.Event{Name: filepath.Join(dir, "template.json"), Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relevant(tt.event, files); got != tt.want {
				t.Errorf("relevant() = %v, want %v", got, tt.want)
			}
		})
	}
}
