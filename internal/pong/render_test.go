package pong

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeRowBorders(t *testing.T) {
	g := DefaultGeometry()
	states := []State{
		DefaultState(),
		{LeftPaddle: 1, RightPaddle: 1, BallX: 0, BallY: 0, Speed: 100},
		{LeftPaddle: 27, RightPaddle: 27, BallX: 3099, BallY: 3099, Speed: 100},
	}

	border := bytes.Repeat([]byte{BorderChar}, g.Width)
	for _, s := range states {
		s = s.Normalize(g)
		for _, row := range []int{0, g.Height - 1} {
			got := EncodeRow(g, s, row)
			if !bytes.Equal(got, border) {
				t.Errorf("row %d = %q, expected all border", row, got)
			}
		}
	}
}

func TestEncodeRowLayout(t *testing.T) {
	g := DefaultGeometry()
	s := State{LeftPaddle: 5, RightPaddle: 10, BallX: 1000, BallY: 1500, Speed: 100}.Normalize(g)

	tests := []struct {
		name     string
		row      int
		expected string
	}{
		{
			name:     "empty row",
			row:      2,
			expected: "|" + strings.Repeat(" ", 30) + "|\n",
		},
		{
			name:     "left paddle only",
			row:      5,
			expected: "|H" + strings.Repeat(" ", 29) + "|\n",
		},
		{
			name:     "right paddle only",
			row:      12,
			expected: "|" + strings.Repeat(" ", 29) + "H|\n",
		},
		{
			name:     "ball row",
			row:      15,
			expected: "|" + strings.Repeat(" ", 9) + "O" + strings.Repeat(" ", 20) + "|\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := string(EncodeRow(g, s, tc.row))
			if got != tc.expected {
				t.Errorf("EncodeRow(%d) =\n%q\nexpected\n%q", tc.row, got, tc.expected)
			}
			if len(got) != g.Width {
				t.Errorf("len = %d, expected %d", len(got), g.Width)
			}
		})
	}
}

func TestEncodeRowBallOverPaddle(t *testing.T) {
	g := DefaultGeometry()

	// Ball on the left paddle column
	s := State{LeftPaddle: 4, RightPaddle: 20, BallX: 150, BallY: 550, Speed: 100}.Normalize(g)
	row := EncodeRow(g, s, 5)
	if row[g.LeftPaddleCol()] != BallChar {
		t.Errorf("left paddle cell = %q, expected ball", row[g.LeftPaddleCol()])
	}

	// Ball on the right paddle column
	s = State{LeftPaddle: 20, RightPaddle: 4, BallX: g.RightPaddleCol()*FixedPointScale + 10, BallY: 450, Speed: 100}.Normalize(g)
	row = EncodeRow(g, s, 4)
	if row[g.RightPaddleCol()] != BallChar {
		t.Errorf("right paddle cell = %q, expected ball", row[g.RightPaddleCol()])
	}
}

func TestEncodeRowIdempotent(t *testing.T) {
	g := DefaultGeometry()
	s := DefaultState()
	for range 50 {
		s = Step(g, s)
		for row := range g.Height {
			a := EncodeRow(g, s, row)
			b := EncodeRow(g, s, row)
			if !bytes.Equal(a, b) {
				t.Fatalf("row %d differs between calls: %q vs %q", row, a, b)
			}
		}
	}
}

func TestEncodeRowOutOfRange(t *testing.T) {
	g := DefaultGeometry()
	if got := EncodeRow(g, DefaultState(), -1); got != nil {
		t.Errorf("EncodeRow(-1) = %q, expected nil", got)
	}
	if got := EncodeRow(g, DefaultState(), g.Height); got != nil {
		t.Errorf("EncodeRow(Height) = %q, expected nil", got)
	}
}

func TestEncodeFrame(t *testing.T) {
	g := Geometry{Width: 8, Height: 6, PaddleHeight: 2}
	s := State{LeftPaddle: 1, RightPaddle: 2, BallX: 300, BallY: 200, Speed: 100}.Normalize(g)

	expected := "________" +
		"|H    |\n" +
		"|H O H|\n" +
		"|    H|\n" +
		"|     |\n" +
		"________"

	got := string(EncodeFrame(g, s))
	if got != expected {
		t.Errorf("EncodeFrame =\n%q\nexpected\n%q", got, expected)
	}
}
