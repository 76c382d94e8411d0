package control

import "github.com/gdamore/tcell/v2"

// KeyAction maps a terminal key press to an action.
//
//	up / down            select parameter
//	right, =             large increase
//	shift+right, +       small increase
//	left, -              large decrease
//	shift+left, _        small decrease
//	q, Q, ctrl+c, esc    quit
func KeyAction(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyUp:
		return SelectPrev
	case tcell.KeyDown:
		return SelectNext
	case tcell.KeyRight:
		if ev.Modifiers()&tcell.ModShift != 0 {
			return IncreaseSmall
		}
		return IncreaseLarge
	case tcell.KeyLeft:
		if ev.Modifiers()&tcell.ModShift != 0 {
			return DecreaseSmall
		}
		return DecreaseLarge
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return Quit
	case tcell.KeyRune:
		switch ev.Rune() {
		case '=':
			return IncreaseLarge
		case '+':
			return IncreaseSmall
		case '-':
			return DecreaseLarge
		case '_':
			return DecreaseSmall
		case 'q', 'Q':
			return Quit
		}
	}
	return None
}
