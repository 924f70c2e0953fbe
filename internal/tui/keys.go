package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/MrWong99/lexivox/internal/exercise"
)

type keyMap struct {
	Answer key.Binding
	Skip   key.Binding
	Replay key.Binding
	Hint   key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Answer: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "answer")),
		Skip:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
		Replay: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "replay")),
		Hint:   key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hint")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Answer, k.Skip, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Answer, k.Skip},
		{k.Replay, k.Hint},
		{k.Help, k.Quit},
	}
}

// follow enables the bindings that make sense for turn state.
func (k *keyMap) follow(t exercise.Turn, v exercise.Variant) {
	k.Answer.SetEnabled(t.CanCapture || t.IsCapturing)

	hint := !t.IsPlaying && !t.IsCapturing
	switch v {
	case exercise.VariantExplore:
		// Spoken hints wait until the turn is open.
		hint = hint && (t.Phase == exercise.PhaseReadyToCapture || t.Phase == exercise.PhaseAwaitingRetry)
	default:
		hint = hint && t.Phase != exercise.PhaseFinished && !t.ShowTranslation
	}
	k.Hint.SetEnabled(hint)
}
