package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/MrWong99/irum/internal/romanize"
	"github.com/MrWong99/irum/internal/session"
	"github.com/MrWong99/irum/internal/validate"
	"github.com/MrWong99/irum/pkg/types"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	st := m.ctrl.Snapshot()

	var b strings.Builder
	b.WriteString(m.renderTabs(st) + "\n\n")
	if st.View == session.ViewSaved {
		m.viewSaved(&b, st.Saved)
	} else {
		m.viewHome(&b, st)
	}
	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render("  "+m.notice) + "\n")
	}
	return b.String()
}

func (m Model) renderTabs(st session.State) string {
	home, saved := tabStyle, tabStyle
	if st.View == session.ViewSaved {
		saved = activeTabStyle
	} else {
		home = activeTabStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("irum"),
		home.Render("Find a name"),
		saved.Render(fmt.Sprintf("Saved (%d)", len(st.Saved))),
	)
}

func (m Model) viewHome(b *strings.Builder, st session.State) {
	b.WriteString(" " + m.input.View() + "\n")
	if m.touched && st.Err != nil {
		b.WriteString(errStyle.Render("  "+validate.Message(st.Err)) + "\n")
	}
	if m.loading() {
		b.WriteString(dimStyle.Render("  Converting...") + "\n")
	}
	b.WriteString("\n")

	if len(st.Candidates) == 0 {
		b.WriteString(dimStyle.Render("  Type a name and press Enter.") + "\n")
	}
	for i, c := range st.Candidates {
		b.WriteString(renderCandidate(c, i == 0, i == st.Selected) + "\n")
	}

	var help string
	switch {
	case len(st.Candidates) > 0:
		help = "  Enter: convert  ↑/↓: select  Ctrl+S: save  Tab: saved  Esc: quit"
	default:
		help = "  Enter: convert  Tab: saved  Esc: quit"
	}
	b.WriteString("\n" + helpStyle.Render(help))
}

func renderCandidate(c types.Candidate, primary, selected bool) string {
	name := c.LocalizedName
	if primary {
		if hint := romanize.Hint(name); hint != "" {
			name += " " + hintStyle.Render("("+hint+")")
		}
	}
	line := fmt.Sprintf("%s  %s  %s", name, c.Meaning, dimStyle.Render(fmt.Sprintf("trend %.0f", c.EraScore)))
	if selected {
		return selectedStyle.Render("> " + line)
	}
	return normalStyle.Render("  " + line)
}

func (m Model) viewSaved(b *strings.Builder, saved types.SavedList) {
	if len(saved) == 0 {
		b.WriteString(dimStyle.Render("  No saved names yet.") + "\n")
	}
	now := m.now()
	for i, e := range saved {
		name := e.LocalizedName
		if hint := romanize.Hint(name); hint != "" {
			name += " (" + hint + ")"
		}
		when := humanize.RelTime(e.SavedAt, now, "ago", "from now")
		line := fmt.Sprintf("%s → %s  %s  %s", e.EnglishName, name, e.Meaning, dimStyle.Render("saved "+when))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString(normalStyle.Render("  "+line) + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("  ↑/↓: move  d: delete  Tab: back  q: quit"))
}
