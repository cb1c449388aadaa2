package core

import "time"

// Button identifies one of the four board push buttons.
// Buttons are abstract input sources; the platform decides which physical
// key or pin produces them.
type Button int

const (
	Button0 Button = iota
	Button1
	Button2
	Button3
)

// ButtonCount is the number of supported buttons.
const ButtonCount = 4

// String returns a human-readable name for the button.
func (b Button) String() string {
	switch b {
	case Button0:
		return "Button0"
	case Button1:
		return "Button1"
	case Button2:
		return "Button2"
	case Button3:
		return "Button3"
	default:
		return "Unknown"
	}
}

// Valid reports whether b names one of the supported buttons.
func (b Button) Valid() bool {
	return b >= Button0 && b < ButtonCount
}

// ButtonEvent is a single press of a button.
type ButtonEvent struct {
	Button Button
	At     time.Time
}
