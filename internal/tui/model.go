// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/lexivox/internal/exercise"
)

var (
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	promptStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	wordStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	translationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Italic(true)
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// DoneMsg ends the practice UI. Send it through tea.Program.Send once the
// session has ended.
type DoneMsg struct {
	Stats exercise.Stats
	Err   error
}

type controllerMsg struct{ c *exercise.Controller }

type turnMsg struct {
	c    *exercise.Controller
	turn exercise.Turn
	ok   bool
}

// Model implements the Bubble Tea practice UI. It follows the exercise
// controllers received on its channel one after the other and forwards key
// presses to the current one.
type Model struct {
	controllers <-chan *exercise.Controller
	stats       func() exercise.Stats

	ctrl    *exercise.Controller
	turn    exercise.Turn
	hasTurn bool

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	width  int
	height int

	done     bool
	quitting bool
	final    exercise.Stats
	err      error
}

// NewModel constructs a practice model. stats, if set, feeds the footer.
func NewModel(controllers <-chan *exercise.Controller, stats func() exercise.Stats) *Model {
	return &Model{
		controllers: controllers,
		stats:       stats,
		keys:        defaultKeys(),
		help:        help.New(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statusStyle)),
	}
}

// Quitting reports whether the learner quit before the session ended.
func (m *Model) Quitting() bool { return m.quitting }

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitController(m.controllers), m.spinner.Tick)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case controllerMsg:
		m.ctrl = msg.c
		m.hasTurn = false
		return m, tea.Batch(waitTurn(msg.c), waitController(m.controllers))
	case turnMsg:
		if msg.c != m.ctrl || !msg.ok {
			return m, nil
		}
		m.turn = msg.turn
		m.hasTurn = true
		m.keys.follow(msg.turn, m.ctrl.Variant())
		return m, waitTurn(msg.c)
	case DoneMsg:
		m.done = true
		m.final = msg.Stats
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if m.ctrl == nil || m.done {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Answer):
		m.ctrl.ToggleCapture()
	case key.Matches(msg, m.keys.Skip):
		m.ctrl.Skip()
	case key.Matches(msg, m.keys.Replay):
		m.ctrl.Replay()
	case key.Matches(msg, m.keys.Hint):
		m.ctrl.Hint()
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.done || m.quitting {
		return ""
	}
	sections := []string{m.renderHeader(), "", m.renderWord(), "", m.renderStatus()}
	if m.hasTurn {
		if line := m.renderAnswer(); line != "" {
			sections = append(sections, line)
		}
	}
	sections = append(sections, "", m.renderFooter(), m.help.View(m.keys))
	content := strings.Join(sections, "\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("lexivox")
	if m.ctrl == nil || !m.hasTurn {
		return title
	}
	return title + statusStyle.Render(fmt.Sprintf("  %s · word %d of %d", m.ctrl.Variant(), m.turn.Index+1, m.turn.Total))
}

func (m *Model) renderWord() string {
	if !m.hasTurn {
		return statusStyle.Render(m.spinner.View() + " Preparing exercise...")
	}
	w := m.turn.Word
	var lines []string
	if m.ctrl.Variant() == exercise.VariantExplore || m.turn.HasSucceeded {
		lines = append(lines, wordStyle.Render(w.Target))
	}
	if m.ctrl.Variant() == exercise.VariantSpeech {
		lines = append(lines, promptStyle.Render(w.Prompt))
	}
	if w.Translation != "" && (m.turn.ShowTranslation || m.ctrl.Variant() == exercise.VariantExplore) {
		lines = append(lines, translationStyle.Render(w.Translation))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatus() string {
	if !m.hasTurn {
		return ""
	}
	t := m.turn
	if t.Unsupported {
		return incorrectStyle.Render(t.Message)
	}
	busy := func(s string) string { return statusStyle.Render(m.spinner.View() + " " + s) }
	switch t.Phase {
	case exercise.PhasePrompting:
		return busy("Listen...")
	case exercise.PhaseReadyToCapture:
		if m.ctrl.Variant() == exercise.VariantExplore {
			return statusStyle.Render("Press space and repeat the word")
		}
		return statusStyle.Render("Press space and say the word")
	case exercise.PhaseCapturing:
		return busy("Listening... press space when done")
	case exercise.PhaseJudging:
		return busy("Checking...")
	case exercise.PhaseSucceeded:
		return correctStyle.Render(t.Message)
	case exercise.PhaseFailed:
		return incorrectStyle.Render(t.Message)
	case exercise.PhaseAwaitingRetry:
		msg := "Press space to try again or s to skip"
		if t.Message != "" {
			msg = t.Message + "\n" + msg
		}
		return incorrectStyle.Render(msg)
	case exercise.PhaseAdvancing:
		return busy("Next word...")
	case exercise.PhaseFinished:
		return correctStyle.Render("Exercise complete")
	default:
		return statusStyle.Render(t.Message)
	}
}

func (m *Model) renderAnswer() string {
	t := m.turn
	if t.Transcript == "" {
		return ""
	}
	line := "You said: " + t.Transcript
	if j := t.Judgment; j != nil && !t.IsCapturing {
		line += fmt.Sprintf("  (%.0f%% match)", j.Similarity*100)
	}
	return promptStyle.Render(line)
}

func (m *Model) renderFooter() string {
	var s exercise.Stats
	if m.stats != nil {
		s = m.stats()
	}
	return footerStyle.Render(fmt.Sprintf("Answers %d  Correct %d  Streak %d  Best %d",
		s.Answers, s.Correct, s.Streak, s.BestStreak))
}

// Summary renders the closing line printed after the UI exits.
func Summary(s exercise.Stats) string {
	if s.Answers == 0 {
		return footerStyle.Render("No answers recorded.")
	}
	line := fmt.Sprintf("Session complete: %d of %d correct (%.0f%%), best streak %d",
		s.Correct, s.Answers, s.Accuracy()*100, s.BestStreak)
	if len(s.Completed) > 0 {
		line += fmt.Sprintf(". Finished: %s", strings.Join(s.Completed, ", "))
	}
	return titleStyle.Render(line)
}

func waitController(ch <-chan *exercise.Controller) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return controllerMsg{c: c}
	}
}

func waitTurn(c *exercise.Controller) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-c.Updates()
		return turnMsg{c: c, turn: t, ok: ok}
	}
}
