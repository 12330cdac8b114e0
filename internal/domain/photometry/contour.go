package photometry

import (
	"context"
	"math"
)

// MaxContourLevels caps the number of iso-lines per calculation. Larger
// ranges coarsen the step to an integer multiple.
const MaxContourLevels = 256

// contourPalette maps normalized level to five bands from blue to red.
var contourPalette = [...]string{"#0000ff", "#00ffff", "#00ff00", "#ffff00", "#ff0000"}

// Segment is one iso-line piece crossing a single cell.
type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// ContourLine is the set of crossings for one PPFD level. Points holds each
// distinct edge crossing once; Segments pairs them per cell.
type ContourLine struct {
	Level    float64   `json:"level"`
	Color    string    `json:"color"`
	Points   []Point   `json:"points"`
	Segments []Segment `json:"segments"`
}

// ContourLevels returns multiples of step in (lo, hi]. When the range
// would produce more than MaxContourLevels, the step is scaled up.
func ContourLevels(lo, hi, step float64) []float64 {
	if !(step > 0) || math.IsInf(step, 0) || !finite(lo, hi) || hi <= lo {
		return nil
	}
	first := math.Floor(lo/step) + 1
	last := math.Floor(hi / step)
	if last < first {
		return nil
	}
	if count := last - first + 1; count > MaxContourLevels {
		step *= math.Ceil(count / MaxContourLevels)
		first = math.Floor(lo/step) + 1
		last = math.Floor(hi / step)
	}
	levels := make([]float64, 0, int(last-first)+1)
	for k := first; k <= last; k++ {
		levels = append(levels, k*step)
	}
	return levels
}

// ContourColor picks the palette band for level within [lo, hi].
func ContourColor(level, lo, hi float64) string {
	var t float64
	if hi > lo {
		t = (level - lo) / (hi - lo)
	}
	idx := int(t * float64(len(contourPalette)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(contourPalette) {
		idx = len(contourPalette) - 1
	}
	return contourPalette[idx]
}

// Edge positions within a cell.
const (
	edgeBottom = iota
	edgeRight
	edgeTop
	edgeLeft
)

// caseSegments lists edge pairs per marching-squares case. Corner bits are
// lower-left 1, lower-right 2, upper-right 4, upper-left 8. Saddles (5, 10)
// are resolved separately.
var caseSegments = [16][][2]int{
	0:  nil,
	1:  {{edgeBottom, edgeLeft}},
	2:  {{edgeBottom, edgeRight}},
	3:  {{edgeLeft, edgeRight}},
	4:  {{edgeRight, edgeTop}},
	6:  {{edgeBottom, edgeTop}},
	7:  {{edgeLeft, edgeTop}},
	8:  {{edgeLeft, edgeTop}},
	9:  {{edgeBottom, edgeTop}},
	11: {{edgeRight, edgeTop}},
	12: {{edgeLeft, edgeRight}},
	13: {{edgeBottom, edgeRight}},
	14: {{edgeBottom, edgeLeft}},
	15: nil,
}

func saddleSegments(cse int, centreAbove bool) [][2]int {
	// Above corners connect through the centre when it is above too.
	if (cse == 5) == centreAbove {
		return [][2]int{{edgeBottom, edgeRight}, {edgeTop, edgeLeft}}
	}
	return [][2]int{{edgeBottom, edgeLeft}, {edgeTop, edgeRight}}
}

// contourTracer walks the lattice for one level, caching each edge crossing
// so a crossing shared by two cells is stored once.
type contourTracer struct {
	lat    Lattice
	base   []GridPoint
	level  float64
	hEdges []int32
	vEdges []int32
	line   *ContourLine
}

func newContourTracer(lat Lattice, base []GridPoint, level float64) *contourTracer {
	n := lat.Resolution
	t := &contourTracer{
		lat:    lat,
		base:   base,
		level:  level,
		hEdges: make([]int32, (n+1)*n),
		vEdges: make([]int32, n*(n+1)),
		line:   &ContourLine{Level: level},
	}
	for i := range t.hEdges {
		t.hEdges[i] = -1
	}
	for i := range t.vEdges {
		t.vEdges[i] = -1
	}
	return t
}

// crossing returns the interpolated point on the given edge of cell
// (col, row). Horizontal edges interpolate left to right, vertical edges
// bottom to top, so both neighbouring cells compute the same point.
func (t *contourTracer) crossing(col, row, edge int) Point {
	n := t.lat.Resolution
	var cache *int32
	var a, b int
	switch edge {
	case edgeBottom:
		cache = &t.hEdges[row*n+col]
		a, b = t.lat.Index(col, row), t.lat.Index(col+1, row)
	case edgeTop:
		cache = &t.hEdges[(row+1)*n+col]
		a, b = t.lat.Index(col, row+1), t.lat.Index(col+1, row+1)
	case edgeLeft:
		cache = &t.vEdges[row*(n+1)+col]
		a, b = t.lat.Index(col, row), t.lat.Index(col, row+1)
	default:
		cache = &t.vEdges[row*(n+1)+col+1]
		a, b = t.lat.Index(col+1, row), t.lat.Index(col+1, row+1)
	}
	if *cache >= 0 {
		return t.line.Points[*cache]
	}

	p0, p1 := t.base[a], t.base[b]
	f := 0.5
	if d := p1.PPFD - p0.PPFD; d != 0 {
		f = (t.level - p0.PPFD) / d
	}
	p := Point{X: p0.X + f*(p1.X-p0.X), Y: p0.Y + f*(p1.Y-p0.Y)}
	*cache = int32(len(t.line.Points))
	t.line.Points = append(t.line.Points, p)
	return p
}

func (t *contourTracer) cell(col, row int) {
	c := t.lat.cellCorners(col, row)
	cse := 0
	var sum float64
	for bit, idx := range c {
		v := t.base[idx].PPFD
		sum += v
		if v >= t.level {
			cse |= 1 << bit
		}
	}

	segs := caseSegments[cse]
	if cse == 5 || cse == 10 {
		segs = saddleSegments(cse, sum/4 >= t.level)
	}
	for _, s := range segs {
		t.line.Segments = append(t.line.Segments, Segment{
			A: t.crossing(col, row, s[0]),
			B: t.crossing(col, row, s[1]),
		})
	}
}

// ExtractContours runs marching squares over the evaluated base lattice at
// every level from ContourLevels. Levels without any crossing are dropped.
func ExtractContours(ctx context.Context, lat Lattice, base []GridPoint, step float64) ([]ContourLine, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, invalidParameter("contour step must be positive, got %v", step)
	}
	if len(base) != lat.Size() {
		return nil, invalidParameter("base grid has %d points, lattice expects %d", len(base), lat.Size())
	}
	if len(base) == 0 {
		return nil, nil
	}

	lo, hi := base[0].PPFD, base[0].PPFD
	for _, p := range base[1:] {
		lo = math.Min(lo, p.PPFD)
		hi = math.Max(hi, p.PPFD)
	}

	var lines []ContourLine
	for _, level := range ContourLevels(lo, hi, step) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr := newContourTracer(lat, base, level)
		for row := 0; row < lat.Resolution; row++ {
			for col := 0; col < lat.Resolution; col++ {
				tr.cell(col, row)
			}
		}
		if len(tr.line.Segments) == 0 {
			continue
		}
		tr.line.Color = ContourColor(level, lo, hi)
		lines = append(lines, *tr.line)
	}
	return lines, nil
}
