package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lu-zhengda/avscan/internal/scanner"
)

func startWatcher(t *testing.T, root string, threats chan<- scanner.Finding) *Watcher {
	t.Helper()

	cfg := DefaultConfig(root)
	cfg.DebounceInterval = 50 * time.Millisecond
	cfg.OnThreat = func(f scanner.Finding) { threats <- f }
	cfg.Exclude = func(path string) bool { return filepath.Base(path) == "ignored" }

	w, err := New(scanner.NewInspector([]string{"virus"}), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w
}

func waitThreat(t *testing.T, threats <-chan scanner.Finding) scanner.Finding {
	t.Helper()
	select {
	case f := <-threats:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for threat")
	}
	return scanner.Finding{}
}

func TestWatcherDetectsNewFile(t *testing.T) {
	root := t.TempDir()
	threats := make(chan scanner.Finding, 10)
	startWatcher(t, root, threats)

	path := filepath.Join(root, "dropper.txt")
	if err := os.WriteFile(path, []byte("contains a VIRUS"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := waitThreat(t, threats)
	if f.Path != path {
		t.Errorf("expected %s, got %s", path, f.Path)
	}
	if len(f.Reasons) != 1 || f.Reasons[0] != "Malware signature: virus" {
		t.Errorf("unexpected reasons %v", f.Reasons)
	}
}

func TestWatcherNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	threats := make(chan scanner.Finding, 10)
	startWatcher(t, root, threats)

	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to add the new directory.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "tool.exe")
	if err := os.WriteFile(path, []byte("clean"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := waitThreat(t, threats)
	if f.Path != path {
		t.Errorf("expected %s, got %s", path, f.Path)
	}
}

func TestWatcherIgnoresCleanAndExcluded(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "ignored"), 0o755); err != nil {
		t.Fatal(err)
	}
	threats := make(chan scanner.Finding, 10)
	w := startWatcher(t, root, threats)

	if err := os.WriteFile(filepath.Join(root, "ignored", "x.exe"), []byte("virus"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("all good"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for w.Inspected() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if w.Inspected() == 0 {
		t.Fatal("expected the clean file to be inspected")
	}

	select {
	case f := <-threats:
		t.Errorf("unexpected threat %+v", f)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherStartRequiresDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(scanner.NewInspector(nil), DefaultConfig(file))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(context.Background()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, make(chan scanner.Finding, 1))

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
	select {
	case <-w.Done():
	default:
		t.Error("expected watch loop to have exited")
	}
}
