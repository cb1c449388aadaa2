// Package pong implements the auto-playing two-paddle ball simulation and the
// fixed-width character encoding of its playfield.
// Everything here is pure: no goroutines, no I/O, no clocks.
package pong

import "fmt"

// Visual characters for rendering.
const (
	BorderChar = '_'
	SideChar   = '|'
	BlankChar  = ' '
	PaddleChar = 'H'
	BallChar   = 'O'
	EOLChar    = '\n'
)

// FixedPointScale is the number of fixed-point units per display cell.
const FixedPointScale = 100

// Default playfield settings
const (
	DefaultWidth        = 33
	DefaultHeight       = 32
	DefaultPaddleHeight = 3
	DefaultSpeed        = 100
	WrapTarget          = 2 * FixedPointScale // Where the ball reappears after wrapping

	// Largest playfield accepted by Validate; keeps fixed-point math far from overflow.
	MaxWidth  = 1024
	MaxHeight = 1024
)

// Geometry describes the playfield: Width columns by Height rows, with
// paddles PaddleHeight rows tall.
type Geometry struct {
	Width        int `yaml:"width"`
	Height       int `yaml:"height"`
	PaddleHeight int `yaml:"paddle_height"`
}

// DefaultGeometry returns the 33x32 playfield with 3-row paddles.
func DefaultGeometry() Geometry {
	return Geometry{
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		PaddleHeight: DefaultPaddleHeight,
	}
}

// Validate checks that the geometry leaves room for borders, both paddles and
// the wrap target.
func (g Geometry) Validate() error {
	if g.PaddleHeight < 1 {
		return fmt.Errorf("pong: paddle height must be positive, got %d", g.PaddleHeight)
	}
	// Columns 0, 1, W-3, W-2 and W-1 must all be distinct.
	if g.Width < 5 {
		return fmt.Errorf("pong: width must be at least 5, got %d", g.Width)
	}
	if g.Width > MaxWidth {
		return fmt.Errorf("pong: width must be at most %d, got %d", MaxWidth, g.Width)
	}
	if g.Height > MaxHeight {
		return fmt.Errorf("pong: height must be at most %d, got %d", MaxHeight, g.Height)
	}
	if g.Height < g.PaddleHeight+3 || g.Height < 4 {
		return fmt.Errorf("pong: height %d too small for paddle height %d", g.Height, g.PaddleHeight)
	}
	return nil
}

// MaxPaddleRow is the lowest top row a paddle may occupy before wrapping back
// to row 1. It keeps the paddle clear of the bottom border.
func (g Geometry) MaxPaddleRow() int {
	return g.Height - 2 - g.PaddleHeight
}

// LimitX is the horizontal fixed-point bound; positions at or beyond it wrap.
func (g Geometry) LimitX() int {
	return (g.Width - 2) * FixedPointScale
}

// LimitY is the vertical fixed-point bound; positions at or beyond it wrap.
func (g Geometry) LimitY() int {
	return (g.Height - 1) * FixedPointScale
}

// LeftPaddleCol is the column holding the left paddle glyph.
func (g Geometry) LeftPaddleCol() int {
	return 1
}

// RightPaddleCol is the column holding the right paddle glyph.
func (g Geometry) RightPaddleCol() int {
	return g.Width - 3
}

// RightBorderCol is the column holding the right side border.
func (g Geometry) RightBorderCol() int {
	return g.Width - 2
}

// FrameSize is the number of bytes one full encoded frame occupies.
func (g Geometry) FrameSize() int {
	return g.Width * g.Height
}
