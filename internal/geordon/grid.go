package geordon

import "github.com/danmuck/geordon/internal/protocol/message"

const (
	GridSize = 128
	// HalfRowCount is the number of addressable half-rows; index i covers
	// cells i*64 through i*64+63 in row-major order.
	HalfRowCount = GridSize * GridSize / message.HalfRowLen
	// UnknownCell marks a cell that has not been fetched since the last reset.
	UnknownCell byte = 99
	// MaxCell is the saturation ceiling of a difficulty score.
	MaxCell byte = 100
)

// Grid is the 128x128 difficulty grid. It is not safe for concurrent use.
type Grid struct {
	cells [GridSize * GridSize]byte
}

func NewGrid() *Grid {
	g := &Grid{}
	g.Reset()
	return g
}

// Reset marks every cell unknown.
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = UnknownCell
	}
}

// ApplyHalfRow stores cells into the slice addressed by index, saturating
// each score at MaxCell.
func (g *Grid) ApplyHalfRow(index uint8, cells [message.HalfRowLen]byte) {
	off := int(index) * message.HalfRowLen
	for i, v := range cells {
		g.cells[off+i] = min(v, MaxCell)
	}
}

func (g *Grid) HalfRow(index uint8) [message.HalfRowLen]byte {
	var out [message.HalfRowLen]byte
	off := int(index) * message.HalfRowLen
	copy(out[:], g.cells[off:off+message.HalfRowLen])
	return out
}

// At returns the cell in column x of row y.
func (g *Grid) At(x, y int) (byte, bool) {
	if x < 0 || x >= GridSize || y < 0 || y >= GridSize {
		return 0, false
	}
	return g.cells[y*GridSize+x], true
}

// Snapshot returns a row-major copy of every cell.
func (g *Grid) Snapshot() []byte {
	out := make([]byte, len(g.cells))
	copy(out, g.cells[:])
	return out
}
