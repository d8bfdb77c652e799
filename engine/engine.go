// Package engine is the step sequencer core: it walks the current
// pattern in lockstep with the tempo clock, emits note events to the
// output sink, and owns the patch-switch state machine.
package engine

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"acid-looper/debug"
	"acid-looper/library"
	"acid-looper/pattern"
	"acid-looper/tempo"
)

// State of the playback state machine.
type State int

const (
	// Idle: no pattern loaded, clock not advancing.
	Idle State = iota
	// Playing: stepping through the current pattern.
	Playing
	// SwitchPending: still stepping through the current pattern with a
	// validated pending pattern queued for the next loop boundary.
	SwitchPending
	// Draining: issuing note-offs for still-sounding notes before Idle.
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case SwitchPending:
		return "switch-pending"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}

// Sink accepts discrete note events, one call per event. Sends must
// return promptly; a stalled device is the sink's problem, not the
// step clock's.
type Sink interface {
	NoteOn(channel, note, velocity uint8) error
	NoteOff(channel, note uint8) error
}

// Channels fixes the output channels: bass on one, percussion on another.
type Channels struct {
	Bass   uint8
	Rhythm uint8
}

// ErrSinkFatal is surfaced after repeated consecutive send failures.
var ErrSinkFatal = errors.New("output sink failed repeatedly")

// maxSendFailures is the run of consecutive failed ticks that escalates
// a transient send failure to a fatal playback state.
const maxSendFailures = 3

type selectRequest struct {
	key rune
}

// Snapshot is the engine state as seen by the UI.
type Snapshot struct {
	State        State
	BPM          int
	Step         int
	Length       int
	CurrentID    string
	CurrentName  string
	PendingID    string
	SendFailures int
	Err          error // non-nil once playback died fatally
}

// Engine drives playback. The Run goroutine is the only writer of
// cursor state; everything else talks to it through single-slot
// mailboxes, so the hot path needs no locks.
type Engine struct {
	sink  Sink
	lib   *library.Library
	clock *tempo.Clock
	ch    Channels

	selectBox *Mailbox[selectRequest]
	tempoBox  *Mailbox[int]
	reloadBox *Mailbox[struct{}]
	stopBox   *Mailbox[struct{}]

	// Run-goroutine-owned cursor state
	state     State
	cur       *pattern.Pattern
	curID     string
	pend      *pattern.Pattern
	pendID    string
	step      int
	sounding  int // bass note currently on, -1 if none
	sendFails int
	fatalErr  error
	due       time.Time

	snapMu sync.Mutex
	snap   Snapshot

	// UpdateChan gets a coalesced token whenever the snapshot changes.
	UpdateChan chan struct{}
}

// New creates an engine. Channels default to bass 1 / rhythm 9
// (the T-8 wire layout) when zero.
func New(sink Sink, lib *library.Library, clock *tempo.Clock, ch Channels) *Engine {
	if ch.Bass == 0 && ch.Rhythm == 0 {
		ch = Channels{Bass: 1, Rhythm: 9}
	}
	return &Engine{
		sink:       sink,
		lib:        lib,
		clock:      clock,
		ch:         ch,
		selectBox:  NewMailbox[selectRequest](),
		tempoBox:   NewMailbox[int](),
		reloadBox:  NewMailbox[struct{}](),
		stopBox:    NewMailbox[struct{}](),
		state:      Idle,
		sounding:   -1,
		UpdateChan: make(chan struct{}, 1),
	}
}

// SelectPatch queues a patch switch by keyboard key. While playing, the
// switch lands exactly on the next loop boundary; a second call before
// the boundary replaces the first.
func (e *Engine) SelectPatch(key rune) {
	e.selectBox.Put(selectRequest{key: key})
}

// AdjustTempo applies a relative BPM change, effective mid-pattern.
func (e *Engine) AdjustTempo(delta int) {
	e.tempoBox.Put(delta)
}

// Stop requests a cooperative stop: note-offs first, then Idle.
func (e *Engine) Stop() {
	e.stopBox.Put(struct{}{})
}

// NotifyLibraryChanged pings the engine to re-check its current and
// pending patches against the library. The ping carries no payload, so
// coalescing bursts in the single slot loses nothing.
func (e *Engine) NotifyLibraryChanged() {
	e.reloadBox.Put(struct{}{})
}

// Snapshot returns the last published engine state.
func (e *Engine) Snapshot() Snapshot {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	return e.snap
}

// Run is the playback loop (blocking - run in goroutine). Cancelling
// ctx drains still-sounding notes before returning; there is no hard
// kill that could leave a device note stuck on.
func (e *Engine) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.publish()
	for {
		switch e.state {
		case Idle:
			e.drainMailboxes()
			if e.state != Idle {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-e.selectBox.Ready():
			case <-e.tempoBox.Ready():
			case <-e.reloadBox.Ready():
			case <-e.stopBox.Ready():
			}

		case Playing, SwitchPending:
			if !e.waitUntilDue(ctx) {
				e.drain()
				return
			}
			e.drainMailboxes()
			if e.state == Playing || e.state == SwitchPending {
				e.tick()
			}

		case Draining:
			e.drain()
		}
	}
}

// waitUntilDue sleeps until the anchored due time. Overdue ticks clamp
// the sleep to zero and log a drift warning rather than busy-loop.
// Returns false when ctx is cancelled.
func (e *Engine) waitUntilDue(ctx context.Context) bool {
	rem := time.Until(e.due)
	if rem <= 0 {
		if rem < -time.Millisecond {
			debug.LogEvery(16, "drift", "tick overdue by %v", -rem)
		}
		return true
	}

	timer := time.NewTimer(rem)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// drainMailboxes applies queued commands. Stop wins over everything
// queued alongside it; a select surviving a stop restarts from Idle on
// the next loop pass.
func (e *Engine) drainMailboxes() {
	if _, ok := e.stopBox.Take(); ok && (e.state == Playing || e.state == SwitchPending) {
		debug.Log("engine", "stop requested")
		e.state = Draining
		e.publish()
		return
	}
	if delta, ok := e.tempoBox.Take(); ok {
		e.clock.Adjust(delta)
		debug.Log("clock", "bpm=%d", e.clock.BPM())
		e.publish()
	}
	if req, ok := e.selectBox.Take(); ok {
		e.handleSelect(req.key)
	}
	if _, ok := e.reloadBox.Take(); ok {
		e.handleReload()
	}
}

func (e *Engine) handleSelect(key rune) {
	p, id, ok := e.lib.PatternByKey(key)
	if !ok {
		debug.Log("engine", "select %q: no patch bound", key)
		return
	}

	switch e.state {
	case Idle:
		if !e.lib.Acquire(id) {
			return
		}
		e.cur, e.curID = p, id
		e.step = 0
		e.sounding = -1
		e.sendFails = 0
		e.fatalErr = nil
		e.state = Playing
		e.due = time.Now()
		debug.Log("engine", "playing %s", id)

	case Playing, SwitchPending:
		// last writer wins - no queue depth beyond one
		if e.pendID != "" {
			e.lib.Release(e.pendID)
			e.pend, e.pendID = nil, ""
		}
		if !e.lib.Acquire(id) {
			if e.state == SwitchPending {
				e.state = Playing
			}
			break
		}
		e.pend, e.pendID = p, id
		e.state = SwitchPending
		debug.Log("engine", "queued %s for next boundary", id)
	}
	e.publish()
}

// handleReload re-checks current and pending against the library after
// a hot-reload ping.
func (e *Engine) handleReload() {
	if e.state != Playing && e.state != SwitchPending {
		return
	}

	cur, ok := e.lib.Get(e.curID)
	if !ok {
		// Source file vanished under the playing pattern: degrade to
		// silence, never crash.
		debug.Log("engine", "current patch %s removed, draining", e.curID)
		e.state = Draining
		e.publish()
		return
	}

	if e.pendID != "" {
		p, ok := e.lib.Get(e.pendID)
		switch {
		case !ok:
			// Only pending: cleared silently.
			e.lib.Release(e.pendID)
			e.pend, e.pendID = nil, ""
			if e.state == SwitchPending {
				e.state = Playing
			}
		case p != e.pend:
			e.pend = p // play the newest version at the boundary
		}
	}

	if cur != e.cur && e.pendID == "" {
		// Valid edit of the playing patch: implicit select of the same
		// key, taking effect at the next loop boundary.
		if e.lib.Acquire(e.curID) {
			e.pend, e.pendID = cur, e.curID
			e.state = SwitchPending
			debug.Log("engine", "queued reloaded %s", e.curID)
		}
	}
	e.publish()
}

// tick plays one step and advances the cursor. Executed once per
// StepDuration by Run.
func (e *Engine) tick() {
	failed := false
	bs := e.cur.Bass[e.step]
	ds := e.cur.Drums[e.step]

	// Rhythm voices self-terminate on the device, so drum hits are
	// fire-and-forget: note-on immediately followed by note-off, no
	// sustained state to track.
	for _, hit := range ds.Hits {
		if err := e.sink.NoteOn(e.ch.Rhythm, hit.Voice, hit.Velocity); err != nil {
			failed = true
			debug.Log("midi", "drum on %d: %v", hit.Voice, err)
		}
		if err := e.sink.NoteOff(e.ch.Rhythm, hit.Voice); err != nil {
			failed = true
		}
	}

	// Monophonic bass voice: at most one note sounding. A rest lets the
	// previous note ring until the next sounding step; a hard-cut step
	// chokes it.
	switch {
	case bs.Rest:
	case bs.HardCut():
		if e.sounding >= 0 && !e.bassOff() {
			failed = true
		}
	default:
		if e.sounding >= 0 && !e.bassOff() {
			failed = true
		}
		if err := e.sink.NoteOn(e.ch.Bass, bs.Note, bs.Velocity); err != nil {
			failed = true
			debug.Log("midi", "bass on %d: %v", bs.Note, err)
		}
		// Track the note even if the send errored: if it did reach the
		// device, a note-off must still follow.
		e.sounding = int(bs.Note)
	}

	if failed {
		e.sendFails++
		if e.sendFails >= maxSendFailures {
			debug.Log("engine", "%d consecutive send failures, draining", e.sendFails)
			e.fatalErr = ErrSinkFatal
			e.state = Draining
			e.publish()
			return
		}
	} else {
		e.sendFails = 0
	}

	e.step++
	if e.step >= e.cur.Length() {
		e.step = 0
		// The loop boundary is the only point the audible pattern changes.
		if e.state == SwitchPending {
			e.applySwitch()
		}
	}

	// Anchor the next due time to the previous one, not to now: the
	// clock's phase must not accumulate processing overhead.
	e.due = e.due.Add(e.clock.StepDuration())
	e.publish()
}

func (e *Engine) applySwitch() {
	// The outgoing pattern's last note always gets an explicit note-off
	// before any cross-pattern note-on.
	if e.sounding >= 0 {
		e.bassOff()
	}
	e.lib.Release(e.curID)
	e.cur, e.curID = e.pend, e.pendID
	e.pend, e.pendID = nil, ""
	e.state = Playing
	debug.Log("engine", "switched to %s", e.curID)
}

// drain silences anything still sounding and returns to Idle.
func (e *Engine) drain() {
	if e.sounding >= 0 {
		e.bassOff()
	}
	if e.curID != "" {
		e.lib.Release(e.curID)
	}
	if e.pendID != "" {
		e.lib.Release(e.pendID)
	}
	e.cur, e.curID = nil, ""
	e.pend, e.pendID = nil, ""
	e.step = 0
	e.state = Idle
	e.publish()
}

func (e *Engine) bassOff() bool {
	err := e.sink.NoteOff(e.ch.Bass, uint8(e.sounding))
	e.sounding = -1
	if err != nil {
		debug.Log("midi", "bass off: %v", err)
		return false
	}
	return true
}

func (e *Engine) publish() {
	snap := Snapshot{
		State:        e.state,
		BPM:          e.clock.BPM(),
		Step:         e.step,
		PendingID:    e.pendID,
		SendFailures: e.sendFails,
		Err:          e.fatalErr,
	}
	if e.cur != nil {
		snap.CurrentID = e.curID
		snap.CurrentName = e.cur.Name
		snap.Length = e.cur.Length()
	}

	e.snapMu.Lock()
	e.snap = snap
	e.snapMu.Unlock()

	select {
	case e.UpdateChan <- struct{}{}:
	default:
	}
}
