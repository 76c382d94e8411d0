// Package control maps user actions onto parameter changes.
package control

import (
	"fmt"

	"github.com/cbegin/dynclock-go/internal/params"
	"github.com/cbegin/dynclock-go/internal/realtime"
)

// Action is a single user command.
type Action int

const (
	None Action = iota
	SelectPrev
	SelectNext
	IncreaseLarge
	IncreaseSmall
	DecreaseLarge
	DecreaseSmall
	Quit
)

func (a Action) String() string {
	switch a {
	case SelectPrev:
		return "select-prev"
	case SelectNext:
		return "select-next"
	case IncreaseLarge:
		return "increase"
	case IncreaseSmall:
		return "increase-fine"
	case DecreaseLarge:
		return "decrease"
	case DecreaseSmall:
		return "decrease-fine"
	case Quit:
		return "quit"
	}
	return "none"
}

// ParamsFor returns the parameters shown for mode, top to bottom.
func ParamsFor(mode realtime.Mode) []params.ID {
	if mode == realtime.ModeBeatClock {
		return []params.ID{params.RisingThreshold, params.FallingThreshold, params.LowMinTime}
	}
	return []params.ID{params.LowpassSteepness, params.CompressorRatio, params.CompressorThreshold, params.MakeupGain}
}

// Row is one display line of the surface.
type Row struct {
	params.Info
	Selected bool
	Text     string
}

// Surface tracks the selected parameter and applies actions to the store.
// It is used from the control thread only.
type Surface struct {
	store    *params.Store
	ids      []params.ID
	selected int
}

// NewSurface selects the last parameter of mode.
func NewSurface(store *params.Store, mode realtime.Mode) *Surface {
	ids := ParamsFor(mode)
	return &Surface{store: store, ids: ids, selected: len(ids) - 1}
}

// Selected returns the currently selected parameter.
func (s *Surface) Selected() params.ID { return s.ids[s.selected] }

// Apply performs a and reports whether the user asked to quit. Selection
// stops at either end of the list.
func (s *Surface) Apply(a Action) (quit bool) {
	id := s.ids[s.selected]
	def, _ := params.Lookup(id)
	switch a {
	case SelectPrev:
		if s.selected > 0 {
			s.selected--
		}
	case SelectNext:
		if s.selected < len(s.ids)-1 {
			s.selected++
		}
	case IncreaseLarge:
		s.store.Adjust(id, def.LargeStep)
	case IncreaseSmall:
		s.store.Adjust(id, def.SmallStep)
	case DecreaseLarge:
		s.store.Adjust(id, -def.LargeStep)
	case DecreaseSmall:
		s.store.Adjust(id, -def.SmallStep)
	case Quit:
		return true
	}
	return false
}

// Rows returns the current state of every parameter on the surface.
func (s *Surface) Rows() []Row {
	rows := make([]Row, len(s.ids))
	for i, id := range s.ids {
		info := s.store.Info(id)
		rows[i] = Row{
			Info:     info,
			Selected: i == s.selected,
			Text:     fmt.Sprintf(info.Format, info.Raw),
		}
	}
	return rows
}
