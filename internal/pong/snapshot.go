package pong

// Snapshot is the wire form of one produced frame, used for telemetry.
// Uses primitive types only for stable serialization.
type Snapshot struct {
	Seq    uint64 `msgpack:"seq"`
	Tick   uint64 `msgpack:"tick"`
	Width  int    `msgpack:"width"`
	Height int    `msgpack:"height"`
	State  State  `msgpack:"state"`
}

// NewSnapshot captures s together with its playfield and sequence numbers.
func NewSnapshot(g Geometry, seq, tick uint64, s State) Snapshot {
	return Snapshot{
		Seq:    seq,
		Tick:   tick,
		Width:  g.Width,
		Height: g.Height,
		State:  s,
	}
}
