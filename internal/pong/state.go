package pong

import (
	"fmt"

	"github.com/vovakirdan/serialpong/internal/core"
)

// State is a plain value snapshot of the ball and both paddles.
// It is copied by value whenever it crosses a goroutine boundary.
type State struct {
	// Paddles: top row of each PaddleHeight-tall paddle
	LeftPaddle  int `yaml:"left_paddle" msgpack:"left_paddle"`
	RightPaddle int `yaml:"right_paddle" msgpack:"right_paddle"`

	// Ball position in fixed-point units (FixedPointScale per cell)
	BallX int `yaml:"ball_x" msgpack:"ball_x"`
	BallY int `yaml:"ball_y" msgpack:"ball_y"`

	// Ball position in cells, always BallX/FixedPointScale and BallY/FixedPointScale
	BallCol int `yaml:"-" msgpack:"ball_col"`
	BallRow int `yaml:"-" msgpack:"ball_row"`

	// Per-tick fixed-point increment
	Speed int `yaml:"speed" msgpack:"speed"`

	// Signed momentum, only used by the bounce motion model
	VelX int `yaml:"vel_x" msgpack:"vel_x"`
	VelY int `yaml:"vel_y" msgpack:"vel_y"`
}

// DefaultState returns the initial state used at task start.
func DefaultState() State {
	s := State{
		LeftPaddle:  5,
		RightPaddle: 5,
		BallX:       5,
		BallY:       5,
		Speed:       DefaultSpeed,
	}
	s.syncPixels()
	return s
}

// Normalize returns s with every field forced into the legal range for g.
// Negative or oversized fixed-point positions, paddles outside
// [1, MaxPaddleRow] and non-positive speeds are clamped rather than rejected.
func (s State) Normalize(g Geometry) State {
	s.LeftPaddle = core.Clamp(s.LeftPaddle, 1, g.MaxPaddleRow())
	s.RightPaddle = core.Clamp(s.RightPaddle, 1, g.MaxPaddleRow())
	s.BallX = core.Clamp(s.BallX, 0, g.LimitX()-1)
	s.BallY = core.Clamp(s.BallY, 0, g.LimitY()) // the bounce model touches the bottom border
	s.Speed = core.Clamp(s.Speed, 1, g.LimitX())
	s.syncPixels()
	return s
}

// InBounds reports whether the derived cell coordinates and paddle rows
// satisfy the playfield invariants for g.
func (s State) InBounds(g Geometry) bool {
	if s.BallCol < 0 || s.BallCol >= g.Width || s.BallRow < 0 || s.BallRow >= g.Height {
		return false
	}
	if s.LeftPaddle < 1 || s.LeftPaddle > g.MaxPaddleRow() {
		return false
	}
	if s.RightPaddle < 1 || s.RightPaddle > g.MaxPaddleRow() {
		return false
	}
	return s.BallCol == s.BallX/FixedPointScale && s.BallRow == s.BallY/FixedPointScale
}

// syncPixels recomputes cell coordinates from the fixed-point position.
func (s *State) syncPixels() {
	s.BallCol = s.BallX / FixedPointScale
	s.BallRow = s.BallY / FixedPointScale
}

// String returns a compact description used in logs.
func (s State) String() string {
	return fmt.Sprintf("paddles=%d/%d ball=(%d,%d)@(%d,%d) speed=%d",
		s.LeftPaddle, s.RightPaddle, s.BallX, s.BallY, s.BallCol, s.BallRow, s.Speed)
}
