// Board and disk color primitives for Reversi.
//
// The board is an 8x8 grid of optional disks.  Apart from FlipDisks,
// which flips disks on the board it is given, the operations here only
// read the board; within a Game, cells change only through
// Game.ApplyMove.
package game

const Size = 8

// DiskColor identifies which player a disk (or a move) belongs to.
type DiskColor uint8

const (
	Black DiskColor = iota
	White
)

// Opposite returns the other color.
func (c DiskColor) Opposite() DiskColor {
	if c == Black {
		return White
	}
	return Black
}

// String renders the wire form of a color: lower-case "black"/"white".
func (c DiskColor) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		panic("illegal disk color")
	}
}

// directions enumerates the eight unit directions a flip can run in.
var directions = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Board is an 8x8 grid indexed [y][x]; a nil cell is empty.
type Board struct {
	cells [Size][Size]*DiskColor
}

// NewBoard returns a board in Reversi's standard starting position.
func NewBoard() *Board {
	b := &Board{}
	b.set(3, 3, White)
	b.set(3, 4, Black)
	b.set(4, 3, Black)
	b.set(4, 4, White)
	return b
}

// Copy returns a deep copy of the board.
func (b *Board) Copy() *Board {
	cp := &Board{}
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			if c := b.cells[y][x]; c != nil {
				cp.set(x, y, *c)
			}
		}
	}
	return cp
}

func (b *Board) at(x, y int) *DiskColor {
	return b.cells[y][x]
}

func (b *Board) set(x, y int, c DiskColor) {
	cc := c
	b.cells[y][x] = &cc
}

func (b *Board) clear(x, y int) {
	b.cells[y][x] = nil
}

func inBounds(x, y int) bool {
	return x >= 0 && x < Size && y >= 0 && y < Size
}

// IsValidMove reports whether color may place a disk at (x, y): the cell
// must be empty and there must be at least one direction where a
// non-empty run of the opposite color is terminated by a same-color disk.
func IsValidMove(b *Board, x, y int, color DiskColor) bool {
	if !inBounds(x, y) || b.at(x, y) != nil {
		return false
	}

	opp := color.Opposite()
	for _, d := range directions {
		nx, ny := x+d[0], y+d[1]
		if !inBounds(nx, ny) || b.at(nx, ny) == nil || *b.at(nx, ny) != opp {
			continue
		}
		nx, ny = nx+d[0], ny+d[1]
		for inBounds(nx, ny) {
			cell := b.at(nx, ny)
			if cell == nil {
				break
			}
			if *cell == color {
				return true
			}
			nx, ny = nx+d[0], ny+d[1]
		}
	}
	return false
}

// FlipDisks flips every bracketed run of opposite-color disks around
// (x, y) for color.  It assumes the caller has already placed color's
// disk at (x, y).
func FlipDisks(b *Board, x, y int, color DiskColor) {
	opp := color.Opposite()
	for _, d := range directions {
		var toFlip [][2]int

		nx, ny := x+d[0], y+d[1]
		if !inBounds(nx, ny) || b.at(nx, ny) == nil || *b.at(nx, ny) != opp {
			continue
		}
		toFlip = append(toFlip, [2]int{nx, ny})
		nx, ny = nx+d[0], ny+d[1]

		for inBounds(nx, ny) {
			cell := b.at(nx, ny)
			if cell == nil {
				toFlip = nil
				break
			}
			if *cell == color {
				for _, p := range toFlip {
					b.set(p[0], p[1], color)
				}
				break
			}
			toFlip = append(toFlip, [2]int{nx, ny})
			nx, ny = nx+d[0], ny+d[1]
		}
	}
}

// CanPlayerMove reports whether color has at least one legal move.
func CanPlayerMove(b *Board, color DiskColor) bool {
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			if IsValidMove(b, x, y, color) {
				return true
			}
		}
	}
	return false
}

// Counts returns the number of black and white disks on the board.
func (b *Board) Counts() (black, white int) {
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			c := b.at(x, y)
			if c == nil {
				continue
			}
			if *c == Black {
				black++
			} else {
				white++
			}
		}
	}
	return
}

// Wire renders the board in its serializable form: an 8x8 grid of
// "black"/"white"/nil.
func (b *Board) Wire() [Size][Size]*string {
	var out [Size][Size]*string
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			if c := b.at(x, y); c != nil {
				s := c.String()
				out[y][x] = &s
			}
		}
	}
	return out
}
