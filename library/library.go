// Package library maps keyboard keys to loaded patches and tracks the
// patch directory so edits show up while the engine is playing.
package library

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"acid-looper/debug"
	"acid-looper/pattern"
)

// PatchKeys is the fixed key priority order. Patch files are bound to
// keys in sorted-id order; files beyond 26 stay indexed but unbound.
const PatchKeys = "qwertyuiopasdfghjklzxcvbnm"

const patchExt = ".json"

// EventType classifies a scan diff result.
type EventType int

const (
	Added EventType = iota
	Updated
	Removed
)

func (t EventType) String() string {
	switch t {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event describes one change detected by Scan.
type Event struct {
	Type EventType
	ID   string
}

type entry struct {
	pattern *pattern.Pattern
	path    string
	mtime   time.Time
	refs    int
	removed bool
}

// Listing is a row for the patch list UI.
type Listing struct {
	Key         rune // 0 if unbound (key overflow)
	ID          string
	Name        string
	Description string
}

// Library owns the key->patch mapping. The engine borrows patterns
// through Acquire/Release; a removed entry is only reclaimed once the
// engine no longer holds it as current or pending.
type Library struct {
	dir string

	mu      sync.Mutex
	entries map[string]*entry
	keyToID map[rune]string
	idToKey map[string]rune

	// files we already tried and failed to load, by mtime, so a bad
	// file is not re-parsed on every poll
	failed map[string]time.Time
}

// New creates a Library over a patch directory. No scan happens yet.
func New(dir string) *Library {
	return &Library{
		dir:     dir,
		entries: make(map[string]*entry),
		keyToID: make(map[rune]string),
		idToKey: make(map[string]rune),
		failed:  make(map[string]time.Time),
	}
}

// Dir returns the patch directory.
func (l *Library) Dir() string {
	return l.dir
}

// Scan diffs the directory against the in-memory table and applies the
// changes. File I/O happens outside the table lock; the lock is only
// held for O(1)-ish map updates.
func (l *Library) Scan() ([]Event, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing directory is a routine condition, not an error.
			return nil, nil
		}
		return nil, err
	}

	type fileInfo struct {
		id    string
		path  string
		mtime time.Time
	}
	present := make(map[string]fileInfo)
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, patchExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(name, patchExt)
		present[id] = fileInfo{id: id, path: filepath.Join(l.dir, name), mtime: info.ModTime()}
	}

	// Decide what needs (re)loading without holding the lock across reads.
	var toLoad []fileInfo
	l.mu.Lock()
	for id, fi := range present {
		e, exists := l.entries[id]
		if exists && !e.removed && !fi.mtime.After(e.mtime) {
			continue
		}
		if failedAt, bad := l.failed[fi.path]; bad && !fi.mtime.After(failedAt) {
			continue
		}
		toLoad = append(toLoad, fi)
	}
	l.mu.Unlock()

	type loaded struct {
		fi  fileInfo
		pat *pattern.Pattern
	}
	var results []loaded
	for _, fi := range toLoad {
		data, err := os.ReadFile(fi.path)
		if err != nil {
			debug.Log("scan", "read %s: %v", fi.path, err)
			continue
		}
		pat, warnings, err := pattern.Load(fi.id, data)
		for _, w := range warnings {
			debug.Log("scan", "%s: %s", fi.id, w)
		}
		if err != nil {
			// A bad edit never corrupts a currently-playable patch:
			// the previous in-memory pattern stays untouched.
			debug.Log("scan", "reload failed, keeping previous: %v", err)
			results = append(results, loaded{fi: fi})
			continue
		}
		results = append(results, loaded{fi: fi, pat: pat})
	}

	var events []Event
	l.mu.Lock()
	for _, r := range results {
		if r.pat == nil {
			if e, exists := l.entries[r.fi.id]; exists && !e.removed {
				e.mtime = r.fi.mtime // don't re-parse the bad file every poll
			} else {
				l.failed[r.fi.path] = r.fi.mtime
			}
			continue
		}
		delete(l.failed, r.fi.path)
		if e, exists := l.entries[r.fi.id]; exists && !e.removed {
			e.pattern = r.pat
			e.path = r.fi.path
			e.mtime = r.fi.mtime
			events = append(events, Event{Type: Updated, ID: r.fi.id})
		} else {
			l.entries[r.fi.id] = &entry{pattern: r.pat, path: r.fi.path, mtime: r.fi.mtime}
			events = append(events, Event{Type: Added, ID: r.fi.id})
		}
	}

	for id, e := range l.entries {
		if e.removed {
			continue
		}
		if _, ok := present[id]; !ok {
			e.removed = true
			if e.refs <= 0 {
				delete(l.entries, id)
			}
			events = append(events, Event{Type: Removed, ID: id})
		}
	}

	l.rebindKeysLocked()
	l.mu.Unlock()

	if len(events) > 0 {
		debug.Log("scan", "%d change(s) in %s", len(events), l.dir)
	}
	return events, nil
}

// AssignKeys maps patch ids to keys in the fixed priority order over
// sorted ids. Pure and re-derivable: the same id set always yields the
// same bindings regardless of discovery order.
func AssignKeys(ids []string) map[string]rune {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	keys := []rune(PatchKeys)
	out := make(map[string]rune, len(sorted))
	for i, id := range sorted {
		if i >= len(keys) {
			break
		}
		out[id] = keys[i]
	}
	return out
}

func (l *Library) rebindKeysLocked() {
	var ids []string
	for id, e := range l.entries {
		if !e.removed {
			ids = append(ids, id)
		}
	}

	assigned := AssignKeys(ids)
	l.keyToID = make(map[rune]string, len(assigned))
	l.idToKey = assigned
	for id, key := range assigned {
		l.keyToID[key] = id
	}

	if len(ids) > len(assigned) {
		debug.Log("scan", "%d patches exceed the %d key slots and are unbound", len(ids)-len(assigned), len(PatchKeys))
	}
}

// Get returns the current version of a patch, or false if the id is
// unknown or its file has been removed.
func (l *Library) Get(id string) (*pattern.Pattern, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok || e.removed {
		return nil, false
	}
	return e.pattern, true
}

// PatternByKey resolves a keyboard key to a patch.
func (l *Library) PatternByKey(key rune) (*pattern.Pattern, string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.keyToID[key]
	if !ok {
		return nil, "", false
	}
	e := l.entries[id]
	if e == nil || e.removed {
		return nil, "", false
	}
	return e.pattern, id, true
}

// KeyFor returns the key bound to a patch id.
func (l *Library) KeyFor(id string) (rune, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.idToKey[id]
	return key, ok
}

// Acquire marks a patch as borrowed by the engine. Returns false if the
// id is unknown or removed.
func (l *Library) Acquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok || e.removed {
		return false
	}
	e.refs++
	return true
}

// Release acknowledges the engine no longer holds the patch as current
// or pending. A removed entry is reclaimed once its last ref drops.
func (l *Library) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return
	}
	if e.refs > 0 {
		e.refs--
	}
	if e.removed && e.refs <= 0 {
		delete(l.entries, id)
	}
}

// Listings returns the bound patches in key priority order, followed by
// any unbound overflow patches in sorted-id order.
func (l *Library) Listings() []Listing {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Listing
	for _, key := range PatchKeys {
		id, ok := l.keyToID[key]
		if !ok {
			continue
		}
		e := l.entries[id]
		out = append(out, Listing{Key: key, ID: id, Name: e.pattern.Name, Description: e.pattern.Description})
	}

	var overflow []string
	for id, e := range l.entries {
		if e.removed {
			continue
		}
		if _, bound := l.idToKey[id]; !bound {
			overflow = append(overflow, id)
		}
	}
	sort.Strings(overflow)
	for _, id := range overflow {
		e := l.entries[id]
		out = append(out, Listing{ID: id, Name: e.pattern.Name, Description: e.pattern.Description})
	}
	return out
}

// First returns the first bound patch in key priority order.
func (l *Library) First() (rune, string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range PatchKeys {
		if id, ok := l.keyToID[key]; ok {
			return key, id, true
		}
	}
	return 0, "", false
}
