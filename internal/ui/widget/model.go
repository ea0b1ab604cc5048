// Package widget is the terminal chat front end: a transcript, a typing
// indicator while Maya answers, suggested prompts and an input line.
package widget

import (
	"context"
	"fmt"
	"strings"

	"concierge-backend/internal/conversation"
	"concierge-backend/internal/models"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const headerHeight = 2

var promptKeys = map[tea.KeyType]int{
	tea.KeyF1: 0,
	tea.KeyF2: 1,
	tea.KeyF3: 2,
	tea.KeyF4: 3,
}

// stateChangedMsg tells the model to re-read the store.
type stateChangedMsg struct{}

// Model is the Bubble Tea model of the widget. The conversation itself lives
// in a conversation.Store; the model only renders snapshots of it.
type Model struct {
	ctx     context.Context
	store   *conversation.Store
	changed <-chan struct{}
	prompts []string

	state    models.ConversationState
	spinner  spinner.Model
	viewport viewport.Model
	input    textinput.Model
	width    int
	height   int
}

// Notifier returns a channel for the store's change signal and the hook that
// feeds it. The hook never blocks; pending signals are coalesced.
func Notifier() (<-chan struct{}, func(models.ConversationState)) {
	ch := make(chan struct{}, 1)
	return ch, func(models.ConversationState) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// New builds the widget around store. changed must be the channel returned by
// Notifier whose hook was given to the store with conversation.WithOnChange.
func New(ctx context.Context, store *conversation.Store, changed <-chan struct{}, prompts []string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = typingStyle

	ti := textinput.New()
	ti.Placeholder = "Ask me anything..."
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	vp := viewport.New(80, 20)

	m := Model{
		ctx:      ctx,
		store:    store,
		changed:  changed,
		prompts:  prompts,
		state:    store.State(),
		spinner:  sp,
		viewport: vp,
		input:    ti,
		width:    80,
		height:   24,
	}
	m.refresh()
	return m
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForChange(m.changed))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.refresh()
		return m, nil

	case stateChangedMsg:
		m.state = m.store.State()
		m.refresh()
		return m, waitForChange(m.changed)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.send(m.input.Value()) {
				m.input.Reset()
			}
			return m, nil
		case tea.KeyF1, tea.KeyF2, tea.KeyF3, tea.KeyF4:
			idx := promptKeys[msg.Type]
			if idx < len(m.prompts) && !m.state.IsLoading {
				m.send(m.prompts[idx])
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// send hands text to the store. It reports whether the store accepted it.
func (m *Model) send(text string) bool {
	if !m.store.Send(m.ctx, text) {
		return false
	}
	m.state = m.store.State()
	m.refresh()
	return true
}

func (m *Model) refresh() {
	footer := m.footerHeight()
	h := m.height - headerHeight - footer
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.input.Width = m.width - len(m.input.Prompt) - 1
	m.viewport.SetContent(renderTranscript(m.state, m.width))
	m.viewport.GotoBottom()
}

func (m Model) footerHeight() int {
	n := 2 // input + key help
	if m.state.IsLoading || m.state.Error != "" {
		n++
	}
	if !m.state.IsLoading && len(m.prompts) > 0 {
		n += promptRows(len(m.prompts))
	}
	return n
}

func promptRows(n int) int {
	if n > 4 {
		n = 4
	}
	return n
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Maya · HealthyMind Care Concierge"))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render("online now"))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.state.IsLoading:
		b.WriteString(m.spinner.View() + " " + typingStyle.Render("Maya is typing") + "\n")
	case m.state.Error != "":
		b.WriteString(errorStyle.Render(m.state.Error) + "\n")
	}

	if !m.state.IsLoading {
		for i, p := range m.prompts {
			if i >= 4 {
				break
			}
			b.WriteString(promptKeyStyle.Render(fmt.Sprintf("F%d", i+1)) + " " + promptStyle.Render(p) + "\n")
		}
	}

	b.WriteString(m.input.View() + "\n")
	b.WriteString(footerStyle.Render("enter send · pgup/pgdn scroll · esc quit"))
	return b.String()
}

// State returns the snapshot the model last rendered.
func (m Model) State() models.ConversationState {
	return m.state
}
