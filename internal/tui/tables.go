package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/MrWong99/lexivox/internal/progress"
	"github.com/MrWong99/lexivox/internal/speech/playback"
	"github.com/MrWong99/lexivox/pkg/types"
)

var headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C0C0C0")).Bold(true)

// ProgressTable renders stored word scores, highest first. words maps IDs to
// their word for display; entries of unknown words show the ID alone.
func ProgressTable(entries []progress.Entry, words []types.Word) string {
	if len(entries) == 0 {
		return footerStyle.Render("No progress recorded yet.")
	}
	byID := make(map[string]types.Word, len(words))
	for _, w := range words {
		byID[w.ID] = w
	}
	sorted := append([]progress.Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].WordID < sorted[j].WordID
	})

	rows := make([]table.Row, 0, len(sorted))
	learned := 0
	for _, e := range sorted {
		label, translation := e.WordID, ""
		if w, ok := byID[e.WordID]; ok {
			label, translation = w.Target, w.Translation
		}
		mark := ""
		if e.Learned() {
			mark = "yes"
			learned++
		}
		rows = append(rows, table.Row{label, translation, fmt.Sprintf("%d", e.Score), mark})
	}
	wordWidth, translationWidth := columnWidth(rows, 0), columnWidth(rows, 1)
	for _, r := range rows {
		r[0] = runewidth.Truncate(r[0], wordWidth, "…")
		r[1] = runewidth.Truncate(r[1], translationWidth, "…")
	}
	columns := []table.Column{
		{Title: "Word", Width: wordWidth},
		{Title: "Translation", Width: translationWidth},
		{Title: "Score", Width: 6},
		{Title: "Learned", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+2),
		table.WithFocused(false),
	)
	t.SetStyles(progressTableStyles())

	summary := footerStyle.Render(fmt.Sprintf("%d words practiced, %d learned", len(sorted), learned))
	return t.View() + "\n" + summary
}

// Text columns fit their widest cell in terminal cells, so CJK targets line
// up, within these bounds.
const (
	minTextColumn = 11
	maxTextColumn = 30
)

func columnWidth(rows []table.Row, col int) int {
	w := minTextColumn
	for _, r := range rows {
		w = max(w, runewidth.StringWidth(r[col]))
	}
	return min(w, maxTextColumn)
}

// DailySummary renders one day's tally.
func DailySummary(d progress.Daily) string {
	acc := 0.0
	if d.Answers > 0 {
		acc = float64(d.CorrectAnswers) / float64(d.Answers) * 100
	}
	return headerStyle.Render("Today") + footerStyle.Render(fmt.Sprintf(
		"  %d answers, %.0f%% correct, %d words added, %d learned",
		d.Answers, acc, d.WordsAdded, d.WordsLearned))
}

// VoiceList renders the synthesizer voices and marks the preferred one.
func VoiceList(voices []playback.Voice, preferred string) string {
	if len(voices) == 0 {
		return footerStyle.Render("No voices available.")
	}
	var b strings.Builder
	for _, v := range voices {
		marker := "  "
		name := v.Name
		if v.Name == preferred {
			marker = "* "
			name = wordStyle.Render(name)
		}
		var tags []string
		if v.Default {
			tags = append(tags, "default")
		}
		if v.Local {
			tags = append(tags, "local")
		}
		line := marker + name + " " + statusStyle.Render(v.Lang)
		if len(tags) > 0 {
			line += " " + footerStyle.Render("("+strings.Join(tags, ", ")+")")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func progressTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell
	return styles
}
