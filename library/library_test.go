package library

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePatch(t *testing.T, dir, id, name string) string {
	t.Helper()
	data := fmt.Sprintf(`{"name": %q, "bass_pattern": [[36, 100, "C2"], null, [39, 110, "D#2"], [36, 100, "C2"]]}`, name)
	path := filepath.Join(dir, id+".json")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// touch advances a file's mtime past whatever the library has recorded.
func touch(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	ts := time.Now().Add(offset)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatal(err)
	}
}

func countType(events []Event, typ EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestScanAddsPatches(t *testing.T) {
	dir := t.TempDir()
	writePatch(t, dir, "bravo", "Bravo")
	writePatch(t, dir, "alpha", "Alpha")
	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not a patch"), 0644)

	lib := New(dir)
	events, err := lib.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if countType(events, Added) != 2 {
		t.Fatalf("events: %v", events)
	}

	// Keys follow sorted-id order over the fixed priority string.
	if key, _ := lib.KeyFor("alpha"); key != 'q' {
		t.Errorf("alpha key=%q, want q", key)
	}
	if key, _ := lib.KeyFor("bravo"); key != 'w' {
		t.Errorf("bravo key=%q, want w", key)
	}

	if p, id, ok := lib.PatternByKey('q'); !ok || id != "alpha" || p.Name != "Alpha" {
		t.Errorf("PatternByKey(q): %v %q %v", p, id, ok)
	}
	if _, _, ok := lib.PatternByKey('z'); ok {
		t.Error("unbound key resolved")
	}
}

func TestScanMissingDirectory(t *testing.T) {
	lib := New("/nonexistent/patches")
	events, err := lib.Scan()
	if err != nil || events != nil {
		t.Fatalf("missing dir should be quiet: events=%v err=%v", events, err)
	}
}

func TestAssignKeysIsPure(t *testing.T) {
	a := AssignKeys([]string{"c", "a", "b"})
	b := AssignKeys([]string{"b", "c", "a"})
	want := map[string]rune{"a": 'q', "b": 'w', "c": 'e'}
	for id, key := range want {
		if a[id] != key || b[id] != key {
			t.Errorf("%s: got %q/%q, want %q", id, a[id], b[id], key)
		}
	}

	// 27th id stays unbound.
	var ids []string
	for i := 0; i < 27; i++ {
		ids = append(ids, fmt.Sprintf("patch%02d", i))
	}
	assigned := AssignKeys(ids)
	if len(assigned) != 26 {
		t.Errorf("assigned %d keys, want 26", len(assigned))
	}
	if _, ok := assigned["patch26"]; ok {
		t.Error("27th patch should be unbound")
	}
}

func TestScanDetectsUpdate(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "acid", "Before")
	lib := New(dir)
	lib.Scan()

	before, _ := lib.Get("acid")

	writePatch(t, dir, "acid", "After")
	touch(t, path, time.Minute)

	events, err := lib.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if countType(events, Updated) != 1 {
		t.Fatalf("events: %v", events)
	}

	after, ok := lib.Get("acid")
	if !ok || after.Name != "After" {
		t.Fatalf("Get after update: %+v %v", after, ok)
	}
	if after == before {
		t.Error("update should produce a new immutable pattern, not mutate the old one")
	}
}

func TestFailedReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "acid", "Good")
	lib := New(dir)
	lib.Scan()

	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	touch(t, path, time.Minute)

	events, err := lib.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("bad edit should produce no events: %v", events)
	}

	p, ok := lib.Get("acid")
	if !ok || p.Name != "Good" {
		t.Fatalf("previous pattern lost: %+v %v", p, ok)
	}

	// The bad file is not re-parsed on the next poll with the same mtime.
	events, _ = lib.Scan()
	if len(events) != 0 {
		t.Errorf("unchanged bad file triggered events: %v", events)
	}
}

func TestScanDetectsRemove(t *testing.T) {
	dir := t.TempDir()
	writePatch(t, dir, "alpha", "Alpha")
	path := writePatch(t, dir, "bravo", "Bravo")
	lib := New(dir)
	lib.Scan()

	os.Remove(path)
	events, err := lib.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if countType(events, Removed) != 1 {
		t.Fatalf("events: %v", events)
	}

	if _, ok := lib.Get("bravo"); ok {
		t.Error("removed patch still resolvable")
	}
	// Keys re-derive from the surviving set.
	if key, _ := lib.KeyFor("alpha"); key != 'q' {
		t.Errorf("alpha key=%q, want q", key)
	}
	if _, _, ok := lib.PatternByKey('w'); ok {
		t.Error("stale key binding survived removal")
	}
}

func TestEvictionWaitsForRelease(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "held", "Held")
	lib := New(dir)
	lib.Scan()

	if !lib.Acquire("held") {
		t.Fatal("Acquire failed")
	}

	os.Remove(path)
	lib.Scan()

	// Removed from the mapping immediately...
	if _, ok := lib.Get("held"); ok {
		t.Error("removed patch still in mapping")
	}
	// ...but the entry survives until the engine acknowledges.
	lib.mu.Lock()
	e, exists := lib.entries["held"]
	lib.mu.Unlock()
	if !exists || !e.removed {
		t.Fatalf("held entry reclaimed before release: %+v %v", e, exists)
	}

	lib.Release("held")
	lib.mu.Lock()
	_, exists = lib.entries["held"]
	lib.mu.Unlock()
	if exists {
		t.Error("entry not reclaimed after release")
	}
}

func TestListingsAndFirst(t *testing.T) {
	dir := t.TempDir()
	writePatch(t, dir, "bravo", "Bravo")
	writePatch(t, dir, "alpha", "Alpha")
	lib := New(dir)
	lib.Scan()

	listings := lib.Listings()
	if len(listings) != 2 || listings[0].ID != "alpha" || listings[1].ID != "bravo" {
		t.Fatalf("listings: %+v", listings)
	}

	key, id, ok := lib.First()
	if !ok || key != 'q' || id != "alpha" {
		t.Errorf("First: %q %q %v", key, id, ok)
	}
}

func TestWatcherForwardsEvents(t *testing.T) {
	dir := t.TempDir()
	lib := New(dir)
	w := NewWatcher(lib, time.Second)

	pinged := 0
	w.SetOnChange(func() { pinged++ })

	writePatch(t, dir, "acid", "Acid")
	w.scan()

	select {
	case ev := <-w.Events():
		if ev.Type != Added || ev.ID != "acid" {
			t.Errorf("event: %+v", ev)
		}
	default:
		t.Fatal("no event forwarded")
	}
	if pinged != 1 {
		t.Errorf("onChange fired %d times, want 1", pinged)
	}

	// Quiet scan: no events, no ping.
	w.scan()
	select {
	case ev := <-w.Events():
		t.Errorf("unexpected event: %+v", ev)
	default:
	}
	if pinged != 1 {
		t.Errorf("onChange fired on a quiet scan")
	}
}
