// Package watch is the live fleet dashboard: it tails the rotation
// telemetry file and shows each pool's latest cycle.
package watch

import (
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xcawolfe-amzn/greenroom/internal/telemetry"
)

// refreshInterval is how often the dashboard re-reads the telemetry file.
const refreshInterval = 2 * time.Second

// PoolRow is one pool's latest cycle, as displayed.
type PoolRow struct {
	Pool       string
	CycleID    string
	Time       time.Time
	Processed  int
	Skipped    int
	Halted     int
	Units      int
	HaltedFlag bool
	HaltReason string
}

// Model is the bubbletea model for the watch TUI.
type Model struct {
	path string // telemetry JSONL location

	rows      []PoolRow
	lastFetch time.Time
	err       error

	// UI state
	keys     KeyMap
	help     help.Model
	showHelp bool
	width    int
	height   int

	// mu protects all fields read by View() from concurrent access.
	// Write lock is held during Update mutations; read lock during render.
	mu sync.RWMutex
}

// New creates a watch model tailing the given telemetry file.
func New(path string) *Model {
	return &Model{
		path: path,
		keys: DefaultKeyMap(),
		help: help.New(),
	}
}

// Init starts the first fetch and the refresh ticker.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetch, tick())
}

// fetchMsg is the result of reading the telemetry file.
type fetchMsg struct {
	rows []PoolRow
	err  error
}

// tickMsg is sent periodically to refresh the view.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetch reads the telemetry file and reduces it to each pool's latest event.
func (m *Model) fetch() tea.Msg {
	events, err := telemetry.ReadEvents(m.path)
	if err != nil {
		return fetchMsg{err: err}
	}
	return fetchMsg{rows: latestPerPool(events)}
}

// latestPerPool keeps only each pool's most recent event, sorted by pool ID.
func latestPerPool(events []telemetry.Event) []PoolRow {
	latest := make(map[string]telemetry.Event)
	for _, ev := range events {
		if prev, ok := latest[ev.Pool]; !ok || ev.Time.After(prev.Time) {
			latest[ev.Pool] = ev
		}
	}
	rows := make([]PoolRow, 0, len(latest))
	for _, ev := range latest {
		rows = append(rows, PoolRow{
			Pool:       ev.Pool,
			CycleID:    ev.CycleID,
			Time:       ev.Time,
			Processed:  ev.ChannelsProcessed,
			Skipped:    ev.ChannelsSkipped,
			Halted:     ev.ChannelsHalted,
			Units:      ev.UnitsProcessed,
			HaltedFlag: ev.Halted,
			HaltReason: ev.HaltReason,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Pool < rows[j].Pool })
	return rows
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.mu.Unlock()
		return m, nil

	case fetchMsg:
		m.mu.Lock()
		m.err = msg.err
		if msg.err == nil {
			m.rows = msg.rows
		}
		m.lastFetch = time.Now()
		m.mu.Unlock()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetch, tick())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch

		case key.Matches(msg, m.keys.Help):
			m.mu.Lock()
			m.showHelp = !m.showHelp
			m.mu.Unlock()
			return m, nil
		}
	}

	return m, nil
}

// View renders the model.
// Acquires read lock to safely access all View-visible fields.
func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.renderView()
}
