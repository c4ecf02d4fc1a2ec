package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// Palette shared with the rest of the custodia tooling.
var (
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
	colourMuted   = lipgloss.Color("#6C7086")
	colourPrimary = lipgloss.Color("#7C3AED")
)

// styles renders status text, in colour only when writing to a terminal.
type styles struct {
	title   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	muted   lipgloss.Style
	enabled bool
}

// isTerminal reports whether w is an interactive terminal.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newStyles(w io.Writer) styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colourPrimary),
		ok:      lipgloss.NewStyle().Foreground(colourSuccess),
		warn:    lipgloss.NewStyle().Foreground(colourWarning),
		bad:     lipgloss.NewStyle().Foreground(colourError).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(colourMuted),
		enabled: isTerminal(w),
	}
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

func (s styles) Title(text string) string { return s.render(s.title, text) }
func (s styles) OK(text string) string    { return s.render(s.ok, text) }
func (s styles) Warn(text string) string  { return s.render(s.warn, text) }
func (s styles) Bad(text string) string   { return s.render(s.bad, text) }
func (s styles) Muted(text string) string { return s.render(s.muted, text) }

// Phase renders a connection phase in its status colour.
func (s styles) Phase(phase domain.ConnectionPhase) string {
	switch phase {
	case domain.PhaseConnected:
		return s.OK(string(phase))
	case domain.PhaseConnecting, domain.PhaseReconnecting:
		return s.Warn(string(phase))
	default:
		return s.Bad(string(phase))
	}
}

// Healthy renders a health flag.
func (s styles) Healthy(ok bool) string {
	if ok {
		return s.OK("healthy")
	}
	return s.Bad("unhealthy")
}

// Status renders a document status in its colour.
func (s styles) Status(status domain.DocumentStatus) string {
	switch status {
	case domain.StatusCompleted:
		return s.OK(string(status))
	case domain.StatusFailed:
		return s.Bad(string(status))
	default:
		return s.Warn(string(status))
	}
}
