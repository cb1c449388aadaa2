package pong

import (
	"fmt"

	"github.com/vovakirdan/serialpong/internal/core"
)

// Motion selects how the ball behaves at the playfield edges.
type Motion string

const (
	// MotionWrap resets the ball to WrapTarget when it reaches an edge.
	MotionWrap Motion = "wrap"

	// MotionBounce reflects the ball off the edges (older firmware behaviour).
	MotionBounce Motion = "bounce"
)

// ParseMotion converts a config string into a Motion.
func ParseMotion(s string) (Motion, error) {
	switch Motion(s) {
	case MotionWrap, "":
		return MotionWrap, nil
	case MotionBounce:
		return MotionBounce, nil
	default:
		return "", fmt.Errorf("pong: unknown motion %q (want wrap or bounce)", s)
	}
}

// Step advances s by one tick using the wrap motion model.
func Step(g Geometry, s State) State {
	return StepWith(g, MotionWrap, s)
}

// StepWith advances s by one tick using the given motion model.
// s is received by value, so the result never aliases the input.
func StepWith(g Geometry, m Motion, s State) State {
	s = s.Normalize(g)

	// Paddles follow a fixed sawtooth independent of the ball
	s.LeftPaddle = advancePaddle(g, s.LeftPaddle)
	s.RightPaddle = advancePaddle(g, s.RightPaddle)

	if m == MotionBounce {
		s = bounceBall(g, s)
	} else {
		s = wrapBall(g, s)
	}

	s.syncPixels()
	return s
}

// advancePaddle moves a paddle down one row, wrapping to row 1 once it has
// reached the lowest legal row.
func advancePaddle(g Geometry, row int) int {
	if row >= g.MaxPaddleRow() {
		return 1
	}
	return row + 1
}

// wrapBall moves the ball diagonally and sends it back to WrapTarget on each
// axis that reaches its bound.
func wrapBall(g Geometry, s State) State {
	s.BallX += s.Speed
	if s.BallX >= g.LimitX() {
		s.BallX = WrapTarget
	}

	s.BallY += s.Speed
	if s.BallY >= g.LimitY() {
		s.BallY = WrapTarget
	}
	return s
}

// bounceBall reverses momentum near the edges, then moves the ball.
func bounceBall(g Geometry, s State) State {
	s.VelX = bounceAxis(s.BallX, s.VelX, s.Speed, (g.Width-3)*FixedPointScale)
	s.VelY = bounceAxis(s.BallY, s.VelY, s.Speed, g.LimitY())

	s.BallX = core.Clamp(s.BallX+s.VelX, 0, g.LimitX()-1)
	s.BallY = core.Clamp(s.BallY+s.VelY, 0, g.LimitY())
	return s
}

// bounceAxis returns the momentum for one axis given the current position.
func bounceAxis(pos, vel, speed, far int) int {
	switch {
	case pos <= FixedPointScale:
		return speed
	case pos >= far:
		return -speed
	case vel == 0:
		return speed
	default:
		return core.Sign(vel) * speed
	}
}
