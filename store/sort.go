package store

import (
	"fmt"
	"slices"
	"strings"

	"usher-schedule/model"
)

// SortMode selects the ordering of the visible list.
type SortMode int

const (
	SortByStart SortMode = iota
	SortByEnd
	SortByTitle
)

var sortModes = []SortMode{SortByStart, SortByEnd, SortByTitle}

func (m SortMode) String() string {
	switch m {
	case SortByStart:
		return "start"
	case SortByEnd:
		return "end"
	case SortByTitle:
		return "title"
	default:
		return fmt.Sprintf("SortMode(%d)", int(m))
	}
}

// Label is the human readable name used by the segmented sort control.
func (m SortMode) Label() string {
	switch m {
	case SortByEnd:
		return "End Time"
	case SortByTitle:
		return "Movie Name"
	default:
		return "Start Time"
	}
}

// Next returns the following mode, wrapping after the last one.
func (m SortMode) Next() SortMode {
	i := slices.Index(sortModes, m)
	return sortModes[(i+1)%len(sortModes)]
}

func (m SortMode) valid() bool {
	return slices.Contains(sortModes, m)
}

func ParseSortMode(value string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "start", "start-time":
		return SortByStart, nil
	case "end", "end-time":
		return SortByEnd, nil
	case "title", "name", "movie":
		return SortByTitle, nil
	default:
		return SortByStart, fmt.Errorf("unknown sort mode %q (want start, end or title)", value)
	}
}

// sortShowtimes orders list in place. Equal keys keep their snapshot order.
func sortShowtimes(list []model.Showtime, mode SortMode) {
	switch mode {
	case SortByEnd:
		slices.SortStableFunc(list, func(a, b model.Showtime) int {
			return a.EndTime.Compare(b.EndTime)
		})
	case SortByTitle:
		slices.SortStableFunc(list, func(a, b model.Showtime) int {
			return strings.Compare(a.Title, b.Title)
		})
	default:
		slices.SortStableFunc(list, func(a, b model.Showtime) int {
			return a.StartTime.Compare(b.StartTime)
		})
	}
}
