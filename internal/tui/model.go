package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rag/internal/domain"
	"rag/internal/summarizer"
)

// Engine is the TUI-facing subset of the query engine.
type Engine interface {
	QueryStream(ctx context.Context, query string, opts domain.QueryOptions) (<-chan domain.StreamEvent, error)
}

type turn struct {
	question string
	answer   strings.Builder
	sources  []domain.Source
	low      bool
	err      error
	stopped  bool
}

// Stream messages carry the sequence number of the query that produced them
// so output from a stopped query is dropped.
type streamEventMsg struct {
	seq int
	ev  domain.StreamEvent
}

type streamClosedMsg struct{ seq int }

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	engine   Engine
	input    textinput.Model
	viewport viewport.Model
	turns    []*turn
	history  []domain.Message
	summary  string
	status   string
	ready    bool

	seq    int
	events <-chan domain.StreamEvent
	cancel context.CancelFunc
}

// New creates a chat model. ctx bounds every query started from the screen.
func New(ctx context.Context, engine Engine, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, engine: engine, input: ti, viewport: vp, summary: summary, status: "Ready."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil

	case streamEventMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		return m.handleEvent(msg.ev)

	case streamClosedMsg:
		if msg.seq == m.seq {
			m.stop()
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.stop()
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.ask()
		case "esc":
			if m.streaming() {
				m.stop()
				if t := m.current(); t != nil {
					t.stopped = true
				}
				m.status = "Stopped."
				m.refresh()
			}
			return m, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" || m.streaming() {
		return m, nil
	}
	ctx, cancel := context.WithCancel(m.ctx)
	events, err := m.engine.QueryStream(ctx, q, domain.QueryOptions{History: m.history})
	t := &turn{question: q}
	m.turns = append(m.turns, t)
	m.input.SetValue("")
	if err != nil {
		cancel()
		t.err = err
		m.status = "Error: " + err.Error()
		m.refresh()
		return m, nil
	}
	m.seq++
	m.events, m.cancel = events, cancel
	m.status = "Thinking..."
	m.refresh()
	return m, waitForEvent(m.seq, events)
}

func (m Model) handleEvent(ev domain.StreamEvent) (tea.Model, tea.Cmd) {
	t := m.current()
	if t == nil || m.events == nil {
		return m, nil
	}
	switch ev.Type {
	case domain.EventSources:
		t.sources, t.low = ev.Sources, ev.LowConfidence
		m.status = "Answering..."
	case domain.EventContent:
		t.answer.WriteString(ev.Content)
	case domain.EventError:
		t.err = ev.Err
		m.status = "Error: " + ev.Err.Error()
	case domain.EventDone:
		m.history = append(m.history,
			domain.Message{Role: "user", Content: t.question},
			domain.Message{Role: "assistant", Content: t.answer.String()},
		)
		m.status = fmt.Sprintf("Answered from %d sources.", len(t.sources))
	}
	m.refresh()
	return m, waitForEvent(m.seq, m.events)
}

func waitForEvent(seq int, ch <-chan domain.StreamEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{seq: seq}
		}
		return streamEventMsg{seq: seq, ev: ev}
	}
}

func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.events, m.cancel = nil, nil
}

func (m Model) streaming() bool { return m.events != nil }

func (m Model) current() *turn {
	if len(m.turns) == 0 {
		return nil
	}
	return m.turns[len(m.turns)-1]
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Chat")
	summary := dimStyle.Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	answers := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + answers + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "Ask anything about your documents."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + t.question))
		b.WriteString("\n")
		b.WriteString(t.answer.String())
		if t.stopped {
			b.WriteString(dimStyle.Render(" [stopped]"))
		}
		if t.err != nil {
			b.WriteString("\n" + errorStyle.Render("Error: "+t.err.Error()))
		}
		if len(t.sources) > 0 {
			label := "Sources:"
			if t.low {
				label = "Sources (low confidence):"
			}
			b.WriteString("\n" + dimStyle.Render(label))
			for j, s := range t.sources {
				fmt.Fprintf(&b, "\n  [%d] %s (%.2f)\n      %s", j+1, s.ID, s.Score, highlightBestSentence(s.Content, t.question))
			}
		}
	}
	return b.String()
}

var (
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// highlightBestSentence marks the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return text
	}
	sentences := summarizer.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestScore > 0 {
		sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := summarizer.Words(strings.ToLower(s))
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range summarizer.Words(strings.ToLower(sentence)) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
