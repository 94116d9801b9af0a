package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"usher-schedule/model"
)

var crossedOffStyle = lipgloss.NewStyle().Strikethrough(true).Faint(true)

type showtimeItem struct {
	showtime   model.Showtime
	crossedOff bool
	now        time.Time
}

func (s showtimeItem) Title() string {
	if s.crossedOff {
		return crossedOffStyle.Render("✓ " + s.showtime.Title)
	}
	return s.showtime.Title
}

func (s showtimeItem) Description() string {
	parts := []string{
		fmt.Sprintf("%s – %s", s.showtime.StartString(), s.showtime.EndString()),
		s.showtime.AuditoriumLabel(),
		s.showtime.Duration(),
		s.showtime.TimeStatus(s.now),
	}
	return strings.Join(parts, " • ")
}

func (s showtimeItem) FilterValue() string {
	return strings.ToLower(s.showtime.Title + " " + s.showtime.AuditoriumLabel())
}
