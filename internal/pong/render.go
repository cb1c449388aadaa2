package pong

// EncodeRow returns the Width-byte encoding of playfield row for s.
// It returns nil when row is outside [0, Height).
func EncodeRow(g Geometry, s State, row int) []byte {
	if row < 0 || row >= g.Height {
		return nil
	}
	return AppendRow(make([]byte, 0, g.Width), g, s, row)
}

// AppendRow appends the encoding of row to dst and returns the extended slice.
// Draw order is border, fill, paddles, ball: later writes win, so the ball
// hides a paddle sharing its cell. Rows outside [0, Height) append nothing.
func AppendRow(dst []byte, g Geometry, s State, row int) []byte {
	if row < 0 || row >= g.Height {
		return dst
	}

	start := len(dst)
	for range g.Width {
		dst = append(dst, BorderChar)
	}
	line := dst[start:]

	// Top and bottom borders fill the entire row
	if row == 0 || row == g.Height-1 {
		return dst
	}

	for i := range line {
		line[i] = BlankChar
	}
	line[0] = SideChar
	line[g.RightBorderCol()] = SideChar
	line[g.Width-1] = EOLChar

	// Place the paddles
	if s.LeftPaddle <= row && row < s.LeftPaddle+g.PaddleHeight {
		line[g.LeftPaddleCol()] = PaddleChar
	}
	if s.RightPaddle <= row && row < s.RightPaddle+g.PaddleHeight {
		line[g.RightPaddleCol()] = PaddleChar
	}

	// Draw the ball
	if s.BallRow == row && s.BallCol >= 0 && s.BallCol < g.Width {
		line[s.BallCol] = BallChar
	}

	return dst
}

// EncodeFrame returns all rows of s concatenated, top to bottom.
func EncodeFrame(g Geometry, s State) []byte {
	buf := make([]byte, 0, g.FrameSize())
	for row := range g.Height {
		buf = AppendRow(buf, g, s, row)
	}
	return buf
}
