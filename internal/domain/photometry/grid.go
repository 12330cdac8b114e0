package photometry

// Room is the footprint (Width along X, Length along Y) and ceiling height,
// in metres.
type Room struct {
	Width  float64 `json:"width" yaml:"width"`
	Length float64 `json:"length" yaml:"length"`
	Height float64 `json:"height" yaml:"height"`
}

// Validate rejects non-finite or non-positive dimensions.
func (r Room) Validate() error {
	if !finite(r.Width, r.Length, r.Height) || r.Width <= 0 || r.Length <= 0 || r.Height <= 0 {
		return invalidParameter("room dimensions must be positive, got %vx%vx%v", r.Width, r.Length, r.Height)
	}
	return nil
}

// Point is a position on the evaluation plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GridPoint is one flux sample. Level is 0 for the base lattice and d for a
// point added by refinement at subdivision depth d.
type GridPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	PPFD  float64 `json:"ppfd"`
	DLI   float64 `json:"dli"`
	Level int     `json:"level"`
}

// Lattice describes the regular base grid: (Resolution+1)^2 points stored
// row-major, Y rows of X columns.
type Lattice struct {
	Resolution int
	Width      float64
	Length     float64
}

// StepX is the column spacing.
func (l Lattice) StepX() float64 { return l.Width / float64(l.Resolution) }

// StepY is the row spacing.
func (l Lattice) StepY() float64 { return l.Length / float64(l.Resolution) }

// Stride is the number of points per row.
func (l Lattice) Stride() int { return l.Resolution + 1 }

// Size is the number of lattice points.
func (l Lattice) Size() int { return l.Stride() * l.Stride() }

// Index returns the slice position of (col, row).
func (l Lattice) Index(col, row int) int { return row*l.Stride() + col }

// Cells is the number of quads in the lattice.
func (l Lattice) Cells() int { return l.Resolution * l.Resolution }

// cellCorners returns the indices of a cell's corners in counter-clockwise
// order starting at the lower left.
func (l Lattice) cellCorners(col, row int) [4]int {
	return [4]int{
		l.Index(col, row),
		l.Index(col+1, row),
		l.Index(col+1, row+1),
		l.Index(col, row+1),
	}
}

// BuildGrid lays out (resolution+1)^2 evenly spaced zero-flux points over the
// room footprint.
func BuildGrid(room Room, resolution int) ([]GridPoint, error) {
	if err := room.Validate(); err != nil {
		return nil, err
	}
	if resolution <= 0 {
		return nil, invalidParameter("resolution must be positive, got %d", resolution)
	}

	lat := Lattice{Resolution: resolution, Width: room.Width, Length: room.Length}
	dx, dy := lat.StepX(), lat.StepY()
	points := make([]GridPoint, 0, lat.Size())
	for row := 0; row <= resolution; row++ {
		for col := 0; col <= resolution; col++ {
			points = append(points, GridPoint{X: float64(col) * dx, Y: float64(row) * dy})
		}
	}
	return points, nil
}
