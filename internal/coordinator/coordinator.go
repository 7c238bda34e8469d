// Package coordinator implements the single-writer authority over every
// session, queue entry and in-flight game. Its Run loop is the only
// goroutine that ever touches its internal maps; every other goroutine
// communicates with it exclusively by sending events to its inbox.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/itsakeyfut/reversi/internal/codec"
	"github.com/itsakeyfut/reversi/internal/conf"
	"github.com/itsakeyfut/reversi/internal/game"
	"github.com/itsakeyfut/reversi/internal/logging"
	"github.com/itsakeyfut/reversi/internal/matchmaking"
)

// Status is a session's position in its per-connection state machine.
type Status uint8

const (
	Connecting Status = iota
	Online
	Idle
	SearchingMatch
	InGame
	Spectating
	Offline
)

// Mailbox is the outbound sink a session exposes to the coordinator. The
// coordinator never writes to a socket directly; it only enqueues onto a
// session's mailbox. The coordinator ignores the error Send returns; a
// session whose mailbox stays full past a short bound closes its own
// connection, which ends in the usual Disconnect for it.
type Mailbox = codec.Mailbox

type sessionRecord struct {
	sessionID string
	username  string
	mailbox   Mailbox
	status    Status
}

// event is the tagged union of everything that can mutate coordinator
// state. Only Run's goroutine ever inspects one.
type event interface{ isEvent() }

type connectEvent struct {
	sessionID string
	username  string
	mailbox   Mailbox
	reply     chan error
}

type disconnectEvent struct {
	sessionID string
	done      chan struct{}
}

type intentEvent struct {
	sessionID string
	msg       codec.ClientMessage
	reply     chan error
}

type tickEvent struct{}

func (connectEvent) isEvent()    {}
func (disconnectEvent) isEvent() {}
func (intentEvent) isEvent()     {}
func (tickEvent) isEvent()       {}

// Coordinator is the process-wide authority described above. Construct
// one with New and start its loop with Run.
type Coordinator struct {
	cfg    *conf.Conf
	log    *logging.Logger
	newID  func() string

	inbox chan event

	sessions    map[string]*sessionRecord
	users       map[string]string // username -> sessionID
	activeGames map[string]*game.Game
	userGames   map[string]string // sessionID -> gameID
	colors      map[string]map[string]game.DiskColor // gameID -> sessionID -> color

	mm *matchmaking.Service
}

// New returns an idle Coordinator. newID mints UUIDs for games and
// matches; production callers pass uuid.NewString.
func New(cfg *conf.Conf, log *logging.Logger, newID func() string) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		log:         log,
		newID:       newID,
		inbox:       make(chan event, 256),
		sessions:    make(map[string]*sessionRecord),
		users:       make(map[string]string),
		activeGames: make(map[string]*game.Game),
		userGames:   make(map[string]string),
		colors:      make(map[string]map[string]game.DiskColor),
		mm:          matchmaking.New(),
	}
}

// Run processes inbound events until ctx is cancelled. It also drives the
// matchmaking tick on its own timer, exactly as the external interface's
// MatchmakingTick setting prescribes.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Timeouts.MatchmakingTick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.handleTick()
		case ev := <-c.inbox:
			c.handle(ev)
		}
	}
}

func (c *Coordinator) handle(ev event) {
	switch e := ev.(type) {
	case connectEvent:
		e.reply <- c.handleConnect(e.sessionID, e.username, e.mailbox)
	case disconnectEvent:
		c.handleDisconnect(e.sessionID)
		close(e.done)
	case intentEvent:
		e.reply <- c.handleIntent(e.sessionID, e.msg)
	case tickEvent:
		c.handleTick()
	}
}

// Connect registers a new session under username, evicting any existing
// session for that username first. It blocks until the coordinator's
// loop has processed the event.
func (c *Coordinator) Connect(sessionID, username string, mailbox Mailbox) error {
	reply := make(chan error, 1)
	c.inbox <- connectEvent{sessionID: sessionID, username: username, mailbox: mailbox, reply: reply}
	return <-reply
}

// Disconnect removes sessionID from every index, ending its game (if
// any) in favor of its opponent. Idempotent: disconnecting an absent
// sessionID is a no-op. It blocks until processed.
func (c *Coordinator) Disconnect(sessionID string) {
	done := make(chan struct{})
	c.inbox <- disconnectEvent{sessionID: sessionID, done: done}
	<-done
}

// Intent dispatches a parsed ClientMessage from sessionID. It blocks
// until processed.
func (c *Coordinator) Intent(sessionID string, msg codec.ClientMessage) error {
	reply := make(chan error, 1)
	c.inbox <- intentEvent{sessionID: sessionID, msg: msg, reply: reply}
	return <-reply
}

func (c *Coordinator) handleConnect(sessionID, username string, mailbox Mailbox) error {
	if oldID, ok := c.users[username]; ok && oldID != sessionID {
		old := c.sessions[oldID]
		if old != nil {
			old.mailbox.Send(codec.ErrorMessage{Message: "Your account has been logged in from another device…"})
		}
		c.evict(oldID)
	}

	c.sessions[sessionID] = &sessionRecord{sessionID: sessionID, username: username, mailbox: mailbox, status: Idle}
	c.users[username] = sessionID

	for id, s := range c.sessions {
		if id == sessionID {
			continue
		}
		s.mailbox.Send(codec.Success{Message: fmt.Sprintf("User %s has logged in", username)})
	}

	c.log.Info("session %s authenticated as %s", sessionID, username)
	return nil
}

// evict removes sessionID from every index without sending it the
// eviction notice (the caller, if any, already has) and without the
// logged-out broadcast, matching the Open Questions resolution that a
// re-authentication eviction is a silent disconnect of the old session.
func (c *Coordinator) evict(sessionID string) {
	c.endGameForSession(sessionID, "Opponent disconnected")
	c.mm.RemoveFromQueue(sessionID)
	if s, ok := c.sessions[sessionID]; ok {
		delete(c.users, s.username)
	}
	delete(c.sessions, sessionID)
}

func (c *Coordinator) handleDisconnect(sessionID string) {
	s, ok := c.sessions[sessionID]
	if !ok {
		return
	}

	c.endGameForSession(sessionID, "Opponent disconnected")
	c.mm.RemoveFromQueue(sessionID)
	delete(c.users, s.username)
	delete(c.sessions, sessionID)

	for _, other := range c.sessions {
		other.mailbox.Send(codec.Success{Message: fmt.Sprintf("User %s has logged out", s.username)})
	}

	c.log.Info("session %s (%s) disconnected", sessionID, s.username)
}

// endGameForSession, if sessionID is currently in a game, ends that game
// in favor of the opponent with the given reason and runs the game-over
// fan-out. It is a no-op if sessionID is not in a game.
func (c *Coordinator) endGameForSession(sessionID, reason string) {
	gameID, ok := c.userGames[sessionID]
	if !ok {
		return
	}
	g := c.activeGames[gameID]
	if g == nil {
		delete(c.userGames, sessionID)
		return
	}

	var opponentID string
	for sid := range c.colors[gameID] {
		if sid != sessionID {
			opponentID = sid
		}
	}

	if !g.IsGameOver {
		if _, err := g.Resign(c.participantPlayerID(g, sessionID)); err != nil {
			c.log.Error("resign-on-disconnect failed for game %s: %v", gameID, err)
		}
	}

	if opponentID != "" {
		if rec, ok := c.sessions[opponentID]; ok {
			rec.mailbox.Send(codec.GameOver{Winner: g.WinnerName(), Reason: reason})
			rec.status = Idle
		}
	}

	delete(c.userGames, sessionID)
	delete(c.userGames, opponentID)
	delete(c.activeGames, gameID)
	delete(c.colors, gameID)
}

func (c *Coordinator) participantPlayerID(g *game.Game, sessionID string) string {
	if g.Black.ID == sessionID {
		return g.Black.ID
	}
	return g.White.ID
}

func (c *Coordinator) handleIntent(sessionID string, msg codec.ClientMessage) error {
	s, ok := c.sessions[sessionID]
	if !ok {
		return fmt.Errorf("coordinator: unknown session %s", sessionID)
	}

	switch m := msg.(type) {
	case codec.JoinQueue:
		return c.handleJoinQueue(s)
	case codec.LeaveQueue:
		return c.handleLeaveQueue(s)
	case codec.MakeMove:
		return c.handleMakeMove(s, m.X, m.Y)
	case codec.Resign:
		return c.handleResign(s)
	case codec.Heartbeat:
		return nil
	case codec.Authenticate:
		// Authentication is already handled at the session layer before
		// an intent reaches the coordinator.
		return nil
	default:
		return fmt.Errorf("coordinator: unsupported intent %T", m)
	}
}

func (c *Coordinator) handleJoinQueue(s *sessionRecord) error {
	if !c.mm.AddToQueue(s.sessionID, s.username, c.cfg.Match.DefaultRating, time.Now()) {
		return s.mailbox.Send(codec.ErrorMessage{Message: "Already in matchmaking queue"})
	}
	s.status = SearchingMatch
	return s.mailbox.Send(codec.Success{Message: "Joined matchmaking queue. Searching for opponent…"})
}

func (c *Coordinator) handleLeaveQueue(s *sessionRecord) error {
	if !c.mm.RemoveFromQueue(s.sessionID) {
		return s.mailbox.Send(codec.ErrorMessage{Message: "Not in matchmaking queue"})
	}
	s.status = Idle
	return s.mailbox.Send(codec.Success{Message: "Left matchmaking queue"})
}

func (c *Coordinator) handleMakeMove(s *sessionRecord, x, y int) error {
	gameID, ok := c.userGames[s.sessionID]
	if !ok {
		return s.mailbox.Send(codec.ErrorMessage{Message: "You are not in a game"})
	}
	g := c.activeGames[gameID]

	state, err := g.ApplyMove(s.sessionID, x, y)
	if err != nil {
		return s.mailbox.Send(codec.ErrorMessage{Message: err.Error()})
	}

	c.fanOutState(gameID, g, state)

	if state.IsGameOver {
		c.finishGame(gameID, g, "Game completed")
	}
	return nil
}

func (c *Coordinator) handleResign(s *sessionRecord) error {
	gameID, ok := c.userGames[s.sessionID]
	if !ok {
		return s.mailbox.Send(codec.ErrorMessage{Message: "You are not in a game"})
	}
	g := c.activeGames[gameID]

	state, err := g.Resign(s.sessionID)
	if err != nil {
		return s.mailbox.Send(codec.ErrorMessage{Message: err.Error()})
	}

	c.fanOutState(gameID, g, state)
	c.finishGame(gameID, g, "Game completed")
	return nil
}

// fanOutState sends the current GameState to both of g's participants,
// each with their own your_color.
func (c *Coordinator) fanOutState(gameID string, g *game.Game, state game.State) {
	for sessionID, color := range c.colors[gameID] {
		if rec, ok := c.sessions[sessionID]; ok {
			rec.mailbox.Send(codec.GameStateMessage{
				Board:         state.Board,
				CurrentPlayer: state.CurrentPlayer,
				YourColor:     color.String(),
			})
		}
	}
}

// finishGame runs the game-over fan-out and removes gameID from every
// index.
func (c *Coordinator) finishGame(gameID string, g *game.Game, reason string) {
	for sessionID := range c.colors[gameID] {
		if rec, ok := c.sessions[sessionID]; ok {
			rec.mailbox.Send(codec.GameOver{Winner: g.WinnerName(), Reason: reason})
			rec.status = Idle
		}
		delete(c.userGames, sessionID)
	}
	delete(c.activeGames, gameID)
	delete(c.colors, gameID)
}

func (c *Coordinator) handleTick() {
	now := time.Now()

	for _, pm := range c.mm.FindMatches(now, c.newID) {
		c.startGame(pm)
	}

	for _, pm := range c.mm.CleanupPendingMatches(now, c.cfg.Timeouts.PendingMatchTimeout()) {
		for _, id := range []string{pm.Player1ID, pm.Player2ID} {
			if rec, ok := c.sessions[id]; ok {
				rec.mailbox.Send(codec.ErrorMessage{Message: "Match timed out. Please join the queue again."})
				rec.status = Idle
			}
		}
	}
}

func (c *Coordinator) startGame(pm matchmaking.PendingMatch) {
	p1, ok1 := c.sessions[pm.Player1ID]
	p2, ok2 := c.sessions[pm.Player2ID]
	if !ok1 || !ok2 {
		// One side disconnected between queueing and pairing; drop the
		// match silently, matching the matchmaking errors policy that a
		// liveness fault is never surfaced beyond the standard
		// disconnect handling (already run when the session left).
		return
	}

	g := game.New(c.newID(), game.Player{ID: pm.Player1ID, Name: pm.Player1Name}, game.Player{ID: pm.Player2ID, Name: pm.Player2Name})

	c.activeGames[g.ID] = g
	c.userGames[pm.Player1ID] = g.ID
	c.userGames[pm.Player2ID] = g.ID
	c.colors[g.ID] = map[string]game.DiskColor{
		pm.Player1ID: game.Black,
		pm.Player2ID: game.White,
	}
	p1.status = InGame
	p2.status = InGame

	p1.mailbox.Send(codec.MatchFound{Opponent: pm.Player2Name})
	p2.mailbox.Send(codec.MatchFound{Opponent: pm.Player1Name})

	state := g.GetState()
	p1.mailbox.Send(codec.GameStateMessage{Board: state.Board, CurrentPlayer: state.CurrentPlayer, YourColor: game.Black.String()})
	p2.mailbox.Send(codec.GameStateMessage{Board: state.Board, CurrentPlayer: state.CurrentPlayer, YourColor: game.White.String()})

	c.log.Info("game %s started: %s (black) vs %s (white)", g.ID, pm.Player1Name, pm.Player2Name)
}
