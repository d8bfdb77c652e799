package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"acid-looper/engine"
	"acid-looper/library"
	"acid-looper/theme"
)

type keymap struct {
	TempoUp   key.Binding
	TempoDown key.Binding
	Stop      key.Binding
	Quit      key.Binding
}

func newKeymap() keymap {
	return keymap{
		TempoUp:   key.NewBinding(key.WithKeys("up", "+", "="), key.WithHelp("↑/+", "tempo up")),
		TempoDown: key.NewBinding(key.WithKeys("down", "-", "_"), key.WithHelp("↓/-", "tempo down")),
		Stop:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keymap) ShortHelp() []key.Binding {
	return []key.Binding{k.TempoUp, k.TempoDown, k.Stop, k.Quit}
}

func (k keymap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Model is the terminal front end. It owns no playback state: every
// key press is forwarded to the engine, and the view is rendered from
// the engine's latest snapshot.
type Model struct {
	eng      *engine.Engine
	lib      *library.Library
	th       *theme.Theme
	events   <-chan library.Event
	keys     keymap
	help     help.Model
	port     string
	lastNote string
	quitting bool
}

func NewModel(eng *engine.Engine, lib *library.Library, events <-chan library.Event, th *theme.Theme, port string) Model {
	return Model{
		eng:    eng,
		lib:    lib,
		th:     th,
		events: events,
		keys:   newKeymap(),
		help:   help.New(),
		port:   port,
	}
}

type engineMsg struct{}
type libraryMsg library.Event

func listenForEngine(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return engineMsg{}
	}
}

func listenForLibrary(events <-chan library.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return libraryMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(listenForEngine(m.eng.UpdateChan), listenForLibrary(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.eng.Stop()
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Stop):
			m.eng.Stop()

		case key.Matches(msg, m.keys.TempoUp):
			m.eng.AdjustTempo(1)

		case key.Matches(msg, m.keys.TempoDown):
			m.eng.AdjustTempo(-1)

		default:
			if r := msg.String(); len(r) == 1 && strings.ContainsRune(library.PatchKeys, rune(r[0])) {
				m.eng.SelectPatch(rune(r[0]))
			}
		}

	case engineMsg:
		return m, listenForEngine(m.eng.UpdateChan)

	case libraryMsg:
		m.lastNote = fmt.Sprintf("%s %s", msg.Type, msg.ID)
		return m, listenForLibrary(m.events)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	snap := m.eng.Snapshot()

	headStyle := lipgloss.NewStyle().Foreground(m.th.Accent()).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(m.th.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.th.FG())
	queuedStyle := lipgloss.NewStyle().Foreground(m.th.Queued())
	warnStyle := lipgloss.NewStyle().Foreground(m.th.Warning())

	var b strings.Builder
	b.WriteString(headStyle.Render("acid looper"))
	b.WriteString(mutedStyle.Render("  " + m.port))
	b.WriteString("\n\n")

	listings := m.lib.Listings()
	for _, ls := range listings {
		marker := ' '
		style := fgStyle
		switch ls.ID {
		case snap.CurrentID:
			marker = m.th.Symbols.Current
			style = lipgloss.NewStyle().Foreground(m.th.Accent())
		case snap.PendingID:
			marker = m.th.Symbols.Queued
			style = queuedStyle
		}
		keyChar := ls.Key
		if keyChar == 0 {
			keyChar = ' ' // overflow patch, no key bound
		}
		line := fmt.Sprintf("%c %c  %-16s %s", marker, keyChar, ls.Name, ls.Description)
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	if len(listings) == 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("no patches in %s", m.lib.Dir())))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.nowPlaying(snap, fgStyle, mutedStyle))
	b.WriteString("\n")

	if snap.Err != nil {
		b.WriteString(warnStyle.Render(fmt.Sprintf("playback stopped: %v", snap.Err)))
		b.WriteString("\n")
	}
	if m.lastNote != "" {
		b.WriteString(mutedStyle.Render("library: " + m.lastNote))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%3d bpm  %s", snap.BPM, snap.State)))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")

	return b.String()
}

// nowPlaying renders the step readout for the step that just sounded.
func (m Model) nowPlaying(snap engine.Snapshot, fg, muted lipgloss.Style) string {
	if snap.State == engine.Idle || snap.Length == 0 {
		return muted.Render("press a patch key to play")
	}

	played := (snap.Step - 1 + snap.Length) % snap.Length
	line := StepIndicator(played, snap.Length)

	if pat, ok := m.lib.Get(snap.CurrentID); ok && played < pat.Length() {
		bs := pat.Bass[played]
		switch {
		case bs.Rest:
			line += "  " + muted.Render("· rest")
		case bs.HardCut():
			line += "  " + muted.Render("× cut")
		default:
			noteStyle := fg
			if bs.Velocity > 110 {
				noteStyle = lipgloss.NewStyle().Foreground(m.th.Accent()).Bold(true)
			}
			line += "  " + NoteBars(bs.Note) + " " + noteStyle.Render(fmt.Sprintf("%-4s", NoteName(bs.Note)))
			if bs.Label != "" {
				line += " " + muted.Render(bs.Label)
			}
		}
		if sym := DrumSymbols(pat.Drums[played].Hits); sym != "" {
			line += "  " + muted.Render(sym)
		}
	}

	return fg.Render(snap.CurrentName) + "  " + line
}
