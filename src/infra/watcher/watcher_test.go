package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contre95/fpbridge/src/features/scanning"
)

func startWatcher(t *testing.T, dir string) <-chan scanning.FileEvent {
	t.Helper()
	events := make(chan scanning.FileEvent, 16)
	w, err := NewWatcher(events, []string{".wav", "mp3"}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	if err := w.Start(ctx, dir); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	return events
}

func waitEvent(t *testing.T, events <-chan scanning.FileEvent) scanning.FileEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file event")
		return scanning.FileEvent{}
	}
}

func TestWatcher_EmitsDebouncedCreate(t *testing.T) {
	dir := t.TempDir()
	events := startWatcher(t, dir)

	path := filepath.Join(dir, "song.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, events)
	if ev.Path != path || ev.EventType != scanning.FileCreated {
		t.Errorf("unexpected event %+v", ev)
	}

	select {
	case ev := <-events:
		t.Errorf("expected a single debounced event, got %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_EmitsRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0644); err != nil {
		t.Fatal(err)
	}
	events := startWatcher(t, dir)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, events)
	if ev.Path != path || ev.EventType != scanning.FileRemoved {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	events := startWatcher(t, dir)

	sub := filepath.Join(dir, "album")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(sub, "track.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, events)
	if ev.Path != path {
		t.Errorf("expected event for %s, got %+v", path, ev)
	}
}
