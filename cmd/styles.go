package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/m3usync/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

// Outcome colours a resolution outcome.
func (p *Palette) Outcome(o models.Outcome) string {
	switch o {
	case models.OutcomeStrong:
		return p.OK(string(o))
	case models.OutcomeWeak:
		return p.Warn(string(o))
	case models.OutcomeUnavailable, models.OutcomeFailed:
		return p.Err(string(o))
	default:
		return p.Help(string(o))
	}
}

// Count renders "label: n", coloured when n is non-zero.
func (p *Palette) Count(label string, n int, style func(string) string) string {
	s := fmt.Sprintf("%s: %d", label, n)
	if n == 0 {
		return p.Help(s)
	}
	return style(s)
}
