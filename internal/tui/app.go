// Package tui renders a conversation kept in sync by chatsync in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/adi-253/Talkie/chatsync/internal/chatsync"
)

// sendTimeout bounds a single send from the composer.
const sendTimeout = 10 * time.Second

// chrome is the number of lines around the viewport: tabs, status, input.
const chrome = 5

// Conversation is one conversation the user can switch to.
type Conversation struct {
	ID         string
	ReceiverID string
	Title      string
}

// SessionController is the part of chatsync.Controller the UI drives.
// OpenSession returns the first snapshot Version of the new session.
type SessionController interface {
	OpenSession(conversationID string) uint64
	Retry()
	Teardown()
}

// Sender sends a message and triggers the resync.
type Sender interface {
	Send(ctx context.Context, receiverID, body string) error
}

// Model is the main TUI model.
type Model struct {
	controller    SessionController
	sender        Sender
	snapshots     <-chan chatsync.Snapshot
	viewerID      string
	conversations []Conversation
	active        int

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	policy   *chatsync.ScrollPolicy
	snap     chatsync.Snapshot

	// minVersion is the first snapshot Version of the open session; older
	// snapshots are still in flight from a previous one.
	minVersion uint64

	width   int
	height  int
	sending bool
	sendErr error
}

// SnapshotMsg delivers a controller snapshot to the TUI.
type SnapshotMsg struct {
	Snapshot chatsync.Snapshot
}

type sentMsg struct {
	err error
}

type sessionOpenedMsg struct {
	version uint64
}

// New creates a TUI model. snapshots is usually controller.Subscribe().
func New(controller SessionController, sender Sender, snapshots <-chan chatsync.Snapshot, viewerID string, conversations []Conversation, scrollThreshold int) Model {
	input := textinput.New()
	input.Placeholder = "Write a message…"
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		controller:    controller,
		sender:        sender,
		snapshots:     snapshots,
		viewerID:      viewerID,
		conversations: conversations,
		viewport:      viewport.New(80, 20),
		input:         input,
		spinner:       sp,
		policy:        chatsync.NewScrollPolicy(scrollThreshold),
	}
}

// Init opens the first conversation and starts listening for snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.openActive(),
		m.listenForSnapshots(),
		m.spinner.Tick,
		textinput.Blink,
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.resizeViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)
		return m, m.listenForSnapshots()

	case sentMsg:
		m.sending = false
		m.sendErr = msg.err
		return m, nil

	case sessionOpenedMsg:
		m.minVersion = max(m.minVersion, msg.version)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the UI.
func (m Model) View() string {
	var sections []string

	if len(m.conversations) > 0 {
		sections = append(sections, renderTabs(m.conversations, m.active))
	} else {
		sections = append(sections, titleStyle.Render("Talkie"))
	}
	sections = append(sections, m.statusLine())

	switch {
	case m.snap.LoadingState == chatsync.StateIdle:
		sections = append(sections, m.placeholder("No conversation selected"))
	case m.snap.LoadingState == chatsync.StateReady && len(m.snap.Messages) == 0:
		sections = append(sections, m.placeholder("No messages yet. Say hello!"))
	default:
		sections = append(sections, m.viewport.View())
	}

	sections = append(sections, inputStyle.Width(max(m.width, 1)).Render(m.input.View()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) statusLine() string {
	switch m.snap.LoadingState {
	case chatsync.StateInitialLoading:
		return m.spinner.View() + " Loading messages…"
	case chatsync.StateError:
		return errorStyle.Render("Could not load messages: "+m.snap.Err) + "  " + hintStyle.Render("ctrl+r to retry")
	}

	var parts []string
	if m.snap.PollingActive {
		parts = append(parts, liveStyle.Render("● live"))
	}
	if m.sending {
		parts = append(parts, hintStyle.Render("sending…"))
	}
	if m.sendErr != nil {
		parts = append(parts, errorStyle.Render("Send failed: "+m.sendErr.Error()))
	}
	if len(parts) == 0 {
		return hintStyle.Render(fmt.Sprintf("%d messages", len(m.snap.Messages)))
	}
	return strings.Join(parts, "  ")
}

func (m Model) placeholder(text string) string {
	return lipgloss.Place(max(m.width, 1), max(m.viewport.Height, 1), lipgloss.Center, lipgloss.Center, hintStyle.Render(text))
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.controller.Teardown()
		return m, tea.Quit

	case key.Matches(msg, keys.Next):
		return m.switchTo(m.active + 1)

	case key.Matches(msg, keys.Prev):
		return m.switchTo(m.active - 1)

	case key.Matches(msg, keys.Retry):
		m.controller.Retry()
		return m, nil

	case key.Matches(msg, keys.Scroll):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, keys.Send):
		return m.send()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) switchTo(idx int) (tea.Model, tea.Cmd) {
	n := len(m.conversations)
	if n < 2 {
		return m, nil
	}
	m.active = (idx%n + n) % n
	m.sendErr = nil
	m.snap = chatsync.Snapshot{ConversationID: m.conversations[m.active].ID, LoadingState: chatsync.StateInitialLoading}
	m.viewport.SetContent("")
	m.viewport.GotoTop()
	m.policy.Reset()
	m.minVersion = m.controller.OpenSession(m.conversations[m.active].ID)
	return m, nil
}

func (m Model) send() (tea.Model, tea.Cmd) {
	conv, ok := m.activeConversation()
	body := m.input.Value()
	if !ok || strings.TrimSpace(body) == "" || m.sending {
		return m, nil
	}
	m.input.Reset()
	m.sending = true
	m.sendErr = nil

	sender := m.sender
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		return sentMsg{err: sender.Send(ctx, conv.ReceiverID, body)}
	}
}

// applySnapshot installs a snapshot and lets the scroll policy decide
// whether the viewport follows the newest message.
func (m *Model) applySnapshot(snap chatsync.Snapshot) {
	if snap.Version < m.minVersion {
		return
	}
	if conv, ok := m.activeConversation(); ok && snap.ConversationID != conv.ID {
		// Left over from the conversation we just switched away from.
		return
	}
	m.snap = snap
	content := renderMessages(snap.Messages, m.viewerID, m.viewport.Width)
	m.policy.Update(scrollArea{&m.viewport}, len(snap.Messages), func() {
		m.viewport.SetContent(content)
	})
}

func (m *Model) resizeViewport() {
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(m.height-chrome, 1)
	if len(m.snap.Messages) > 0 {
		m.viewport.SetContent(renderMessages(m.snap.Messages, m.viewerID, m.viewport.Width))
	}
}

func (m Model) activeConversation() (Conversation, bool) {
	if m.active < 0 || m.active >= len(m.conversations) {
		return Conversation{}, false
	}
	return m.conversations[m.active], true
}

func (m Model) openActive() tea.Cmd {
	conv, _ := m.activeConversation()
	controller := m.controller
	return func() tea.Msg {
		return sessionOpenedMsg{version: controller.OpenSession(conv.ID)}
	}
}

func (m Model) listenForSnapshots() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.snapshots
		if !ok {
			return nil
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

// Key bindings
var keys = struct {
	Quit   key.Binding
	Next   key.Binding
	Prev   key.Binding
	Retry  key.Binding
	Send   key.Binding
	Scroll key.Binding
}{
	Quit:   key.NewBinding(key.WithKeys("esc", "ctrl+c")),
	Next:   key.NewBinding(key.WithKeys("tab")),
	Prev:   key.NewBinding(key.WithKeys("shift+tab")),
	Retry:  key.NewBinding(key.WithKeys("ctrl+r")),
	Send:   key.NewBinding(key.WithKeys("enter")),
	Scroll: key.NewBinding(key.WithKeys("pgup", "pgdown", "up", "down", "ctrl+u", "ctrl+d")),
}
