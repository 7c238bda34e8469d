package game

import "fmt"

// Kind identifies a rule-engine error condition, tested independently of
// its message text.
type Kind uint8

const (
	GameAlreadyOver Kind = iota
	NotAParticipant
	NotYourTurn
	OutOfBounds
	InvalidMove
)

// Error is the error type returned by the rule engine.  Message text
// matches the original implementation's strings so client-observable
// behavior does not change across the rewrite.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

var (
	ErrGameAlreadyOver = &Error{GameAlreadyOver, "Game is already over"}
	ErrNotAParticipant = &Error{NotAParticipant, "You are not a player in this game"}
	ErrNotYourTurn     = &Error{NotYourTurn, "It's not your turn"}
	ErrOutOfBounds     = &Error{OutOfBounds, "Invalid coordinates"}
	ErrInvalidMove     = &Error{InvalidMove, "Invalid move"}
)

// Player identifies one of the two participants of a Game.
type Player struct {
	ID   string
	Name string
}

// Move is a single recorded ply.
type Move struct {
	PlayerID string
	X, Y     int
	Color    DiskColor
}

// Game is a single match between two players, owned exclusively by the
// coordinator: there are no concurrent readers or writers.
type Game struct {
	ID           string
	Black        Player
	White        Player
	Board        *Board
	CurrentColor DiskColor
	IsGameOver   bool
	Winner       string // player ID; "" means none (draw, or ongoing)
	MoveHistory  []Move
}

// New creates a game in the standard starting position, black to move.
func New(id string, black, white Player) *Game {
	return &Game{
		ID:           id,
		Black:        black,
		White:        white,
		Board:        NewBoard(),
		CurrentColor: Black,
	}
}

// State is the serializable projection of a Game.
type State struct {
	Board         [Size][Size]*string
	CurrentPlayer string
	IsGameOver    bool
	Winner        string // "" means none
	BlackCount    int
	WhiteCount    int
	BlackCanMove  bool
	WhiteCanMove  bool
}

// GetState recomputes the current snapshot of g; it is never stored.
func (g *Game) GetState() State {
	black, white := g.Board.Counts()
	return State{
		Board:         g.Board.Wire(),
		CurrentPlayer: g.CurrentColor.String(),
		IsGameOver:    g.IsGameOver,
		Winner:        g.Winner,
		BlackCount:    black,
		WhiteCount:    white,
		BlackCanMove:  CanPlayerMove(g.Board, Black),
		WhiteCanMove:  CanPlayerMove(g.Board, White),
	}
}

// colorOf returns the color playerID is assigned in g, or false if
// playerID is not one of the two participants.
func (g *Game) colorOf(playerID string) (DiskColor, bool) {
	switch playerID {
	case g.Black.ID:
		return Black, true
	case g.White.ID:
		return White, true
	default:
		return 0, false
	}
}

func (g *Game) player(c DiskColor) Player {
	if c == Black {
		return g.Black
	}
	return g.White
}

// ApplyMove validates and applies a move by playerID at (x, y), in order:
// the game must not be over, playerID must be a participant, it must be
// their turn, the coordinates must be in bounds, and the move must be
// legal. On success the disk is placed, flips are applied, the move is
// recorded, and the turn advances (with pass-skip and end-of-game
// detection).
func (g *Game) ApplyMove(playerID string, x, y int) (State, error) {
	if g.IsGameOver {
		return State{}, ErrGameAlreadyOver
	}

	color, ok := g.colorOf(playerID)
	if !ok {
		return State{}, ErrNotAParticipant
	}

	if color != g.CurrentColor {
		return State{}, ErrNotYourTurn
	}

	if x < 0 || x >= Size || y < 0 || y >= Size {
		return State{}, ErrOutOfBounds
	}

	if !IsValidMove(g.Board, x, y, color) {
		return State{}, ErrInvalidMove
	}

	g.Board.set(x, y, color)
	FlipDisks(g.Board, x, y, color)
	g.MoveHistory = append(g.MoveHistory, Move{PlayerID: playerID, X: x, Y: y, Color: color})

	g.advanceTurn()

	return g.GetState(), nil
}

// advanceTurn swaps the current color. If the new player has no legal
// move, it is skipped back to the prior player; if that player also has
// no legal move, the game ends.
func (g *Game) advanceTurn() {
	g.CurrentColor = g.CurrentColor.Opposite()

	if !CanPlayerMove(g.Board, g.CurrentColor) {
		g.CurrentColor = g.CurrentColor.Opposite()

		if !CanPlayerMove(g.Board, g.CurrentColor) {
			g.endGame()
		}
	}
}

// endGame marks the game over and determines the winner by disk count.
func (g *Game) endGame() {
	g.IsGameOver = true

	black, white := g.Board.Counts()
	switch {
	case black > white:
		g.Winner = g.Black.ID
	case white > black:
		g.Winner = g.White.ID
	default:
		g.Winner = ""
	}
}

// Resign ends the game in favor of playerID's opponent, without altering
// the board.
func (g *Game) Resign(playerID string) (State, error) {
	if g.IsGameOver {
		return State{}, ErrGameAlreadyOver
	}

	color, ok := g.colorOf(playerID)
	if !ok {
		return State{}, ErrNotAParticipant
	}

	g.IsGameOver = true
	if color == Black {
		g.Winner = g.White.ID
	} else {
		g.Winner = g.Black.ID
	}

	return g.GetState(), nil
}

// WinnerName returns the display name of the winning player, or "" on a
// draw or if the game is still ongoing.
func (g *Game) WinnerName() string {
	if g.Winner == "" {
		return ""
	}
	if g.Winner == g.Black.ID {
		return g.Black.Name
	}
	return g.White.Name
}

func (k Kind) String() string {
	switch k {
	case GameAlreadyOver:
		return "GameAlreadyOver"
	case NotAParticipant:
		return "NotAParticipant"
	case NotYourTurn:
		return "NotYourTurn"
	case OutOfBounds:
		return "OutOfBounds"
	case InvalidMove:
		return "InvalidMove"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}
