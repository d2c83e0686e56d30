package testutils

// Fixture components shared by tests across the module.

type Position struct {
	X, Y, Z float64
}

func (Position) Name() string {
	return "position"
}

type Velocity struct {
	X, Y, Z float64
}

func (Velocity) Name() string {
	return "velocity"
}

type Health struct {
	HP int
}

func (Health) Name() string {
	return "health"
}

type Tag struct {
	Label   string
	Enabled bool
}

func (Tag) Name() string {
	return "tag"
}

type FrameClock struct {
	Tick uint64
}

func (FrameClock) Name() string {
	return "frame_clock"
}
