package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_MissingPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.py"))
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestNew_NoPaths(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("expected error for empty path list")
	}
}

func TestWatcher_TriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "job.py")
	if err := os.WriteFile(script, []byte("print('v1')\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(script)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan struct{}, 1)
	runDone := make(chan error, 1)
	go func() {
		runDone <- w.Run(ctx, func() {
			select {
			case triggered <- struct{}{}:
			default:
			}
		})
	}()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(script, []byte("print('v2')\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-triggered:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not trigger on write")
	}

	cancel()
	if err := <-runDone; err != nil {
		t.Fatalf("run returned error: %v", err)
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "job.py")
	sibling := filepath.Join(dir, "other.txt")
	if err := os.WriteFile(script, []byte("print('v1')\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(script)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan struct{}, 1)
	go func() {
		_ = w.Run(ctx, func() {
			select {
			case triggered <- struct{}{}:
			default:
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(sibling, []byte("noise\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-triggered:
		t.Fatal("watcher triggered on an unwatched sibling file")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcher_DirectoryTarget(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan struct{}, 1)
	go func() {
		_ = w.Run(ctx, func() {
			select {
			case triggered <- struct{}{}:
			default:
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "module.py"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-triggered:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not trigger inside a watched directory")
	}
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "job.py")
	if err := os.WriteFile(script, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(script)
	if err != nil {
		t.Fatal(err)
	}

	if !w.relevant(script) {
		t.Error("watched file should be relevant")
	}
	if w.relevant(filepath.Join(dir, "other.py")) {
		t.Error("sibling file should not be relevant")
	}
}
