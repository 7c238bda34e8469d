package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/itsakeyfut/reversi/internal/codec"
	"github.com/itsakeyfut/reversi/internal/conf"
	"github.com/itsakeyfut/reversi/internal/logging"
)

// fakeMailbox records every message sent to it, for assertions in tests.
type fakeMailbox struct {
	mu   sync.Mutex
	sent []codec.ServerMessage
}

func (m *fakeMailbox) Send(msg codec.ServerMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailbox) last() codec.ServerMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

func (m *fakeMailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func testCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	cfg := conf.Default
	cfg.Timeouts.MatchmakingTickMillis = 1_000_000 // tests drive ticks manually
	logger, err := logging.Open(t.TempDir()+"/test.log", false)
	if err != nil {
		t.Fatalf("opening test logger: %v", err)
	}
	t.Cleanup(logger.Close)

	n := 0
	newID := func() string {
		n++
		return "id-" + string(rune('0'+n))
	}

	return New(&cfg, logger, newID)
}

func runCoordinator(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)
}

func TestConnectBroadcastsLoginToOthers(t *testing.T) {
	c := testCoordinator(t)
	runCoordinator(t, c)

	box1 := &fakeMailbox{}
	if err := c.Connect("s1", "alice", box1); err != nil {
		t.Fatalf("connect: %v", err)
	}

	box2 := &fakeMailbox{}
	if err := c.Connect("s2", "bob", box2); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if msg, ok := box1.last().(codec.Success); !ok || msg.Message != "User bob has logged in" {
		t.Fatalf("expected alice's mailbox to see bob's login, got %#v", box1.last())
	}
}

func TestConnectEvictsPriorSession(t *testing.T) {
	c := testCoordinator(t)
	runCoordinator(t, c)

	old := &fakeMailbox{}
	c.Connect("s1", "alice", old)

	fresh := &fakeMailbox{}
	c.Connect("s2", "alice", fresh)

	if old.count() == 0 {
		t.Fatalf("expected the evicted session to receive an eviction notice")
	}
	if msg, ok := old.last().(codec.ErrorMessage); !ok || msg.Message == "" {
		t.Fatalf("expected an error message on the evicted session, got %#v", old.last())
	}
}

func TestJoinQueueRejectsDuplicate(t *testing.T) {
	c := testCoordinator(t)
	runCoordinator(t, c)

	box := &fakeMailbox{}
	c.Connect("s1", "alice", box)

	if err := c.Intent("s1", codec.JoinQueue{}); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	if _, ok := box.last().(codec.Success); !ok {
		t.Fatalf("expected success on first join, got %#v", box.last())
	}

	c.Intent("s1", codec.JoinQueue{})
	if msg, ok := box.last().(codec.ErrorMessage); !ok || msg.Message != "Already in matchmaking queue" {
		t.Fatalf("expected duplicate-queue error, got %#v", box.last())
	}
}

func TestLeaveQueueWithoutJoining(t *testing.T) {
	c := testCoordinator(t)
	runCoordinator(t, c)

	box := &fakeMailbox{}
	c.Connect("s1", "alice", box)

	c.Intent("s1", codec.LeaveQueue{})
	if msg, ok := box.last().(codec.ErrorMessage); !ok || msg.Message != "Not in matchmaking queue" {
		t.Fatalf("expected not-in-queue error, got %#v", box.last())
	}
}

func TestMatchmakingTickPairsAndStartsGame(t *testing.T) {
	c := testCoordinator(t)
	runCoordinator(t, c)

	box1 := &fakeMailbox{}
	box2 := &fakeMailbox{}
	c.Connect("s1", "alice", box1)
	c.Connect("s2", "bob", box2)
	c.Intent("s1", codec.JoinQueue{})
	c.Intent("s2", codec.JoinQueue{})

	c.inbox <- tickEvent{}
	time.Sleep(50 * time.Millisecond)

	if box1.count() < 2 {
		t.Fatalf("expected alice to receive match_found then game_state, got %d messages", box1.count())
	}
	if _, ok := box1.sent[len(box1.sent)-2].(codec.MatchFound); !ok {
		t.Fatalf("expected match_found before game_state")
	}
	state, ok := box1.last().(codec.GameStateMessage)
	if !ok {
		t.Fatalf("expected a game_state message, got %#v", box1.last())
	}
	if state.YourColor != "black" {
		t.Fatalf("expected player1 (alice) to be black, got %s", state.YourColor)
	}
}

func TestMakeMoveFansOutToBothPlayers(t *testing.T) {
	c := testCoordinator(t)
	runCoordinator(t, c)

	box1 := &fakeMailbox{}
	box2 := &fakeMailbox{}
	c.Connect("s1", "alice", box1)
	c.Connect("s2", "bob", box2)
	c.Intent("s1", codec.JoinQueue{})
	c.Intent("s2", codec.JoinQueue{})
	c.inbox <- tickEvent{}
	time.Sleep(50 * time.Millisecond)

	if err := c.Intent("s1", codec.MakeMove{X: 2, Y: 3}); err != nil {
		t.Fatalf("make move: %v", err)
	}

	st1, ok := box1.last().(codec.GameStateMessage)
	if !ok {
		t.Fatalf("expected alice to receive game_state, got %#v", box1.last())
	}
	st2, ok := box2.last().(codec.GameStateMessage)
	if !ok {
		t.Fatalf("expected bob to receive game_state, got %#v", box2.last())
	}
	if st1.CurrentPlayer != "white" || st2.CurrentPlayer != "white" {
		t.Fatalf("expected turn to pass to white for both recipients")
	}
	if *st1.Board[3][2] != "black" || *st1.Board[3][3] != "black" {
		t.Fatalf("expected placed and flipped disks to be black")
	}
}

func TestMakeMoveNotYourTurnError(t *testing.T) {
	c := testCoordinator(t)
	runCoordinator(t, c)

	box1 := &fakeMailbox{}
	box2 := &fakeMailbox{}
	c.Connect("s1", "alice", box1)
	c.Connect("s2", "bob", box2)
	c.Intent("s1", codec.JoinQueue{})
	c.Intent("s2", codec.JoinQueue{})
	c.inbox <- tickEvent{}
	time.Sleep(50 * time.Millisecond)

	c.Intent("s2", codec.MakeMove{X: 2, Y: 4})

	if msg, ok := box2.last().(codec.ErrorMessage); !ok || msg.Message != "It's not your turn" {
		t.Fatalf("expected not-your-turn error for bob, got %#v", box2.last())
	}
}

func TestDisconnectMidGameNotifiesOpponent(t *testing.T) {
	c := testCoordinator(t)
	runCoordinator(t, c)

	box1 := &fakeMailbox{}
	box2 := &fakeMailbox{}
	c.Connect("s1", "alice", box1)
	c.Connect("s2", "bob", box2)
	c.Intent("s1", codec.JoinQueue{})
	c.Intent("s2", codec.JoinQueue{})
	c.inbox <- tickEvent{}
	time.Sleep(50 * time.Millisecond)

	c.Disconnect("s1")

	// The game_over is followed by the "has logged out" broadcast.
	gameOver := box2.sent[len(box2.sent)-2]
	msg, ok := gameOver.(codec.GameOver)
	if !ok {
		t.Fatalf("expected bob to receive game_over, got %#v", gameOver)
	}
	if msg.Winner != "bob" || msg.Reason != "Opponent disconnected" {
		t.Fatalf("expected bob to win by disconnect, got %#v", msg)
	}

	if _, inGame := c.userGames["s2"]; inGame {
		t.Fatalf("expected bob's userGames entry removed after game end")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	c := testCoordinator(t)
	runCoordinator(t, c)

	box := &fakeMailbox{}
	c.Connect("s1", "alice", box)
	c.Disconnect("s1")
	c.Disconnect("s1") // must not panic or error
}

func TestResignEndsGame(t *testing.T) {
	c := testCoordinator(t)
	runCoordinator(t, c)

	box1 := &fakeMailbox{}
	box2 := &fakeMailbox{}
	c.Connect("s1", "alice", box1)
	c.Connect("s2", "bob", box2)
	c.Intent("s1", codec.JoinQueue{})
	c.Intent("s2", codec.JoinQueue{})
	c.inbox <- tickEvent{}
	time.Sleep(50 * time.Millisecond)

	c.Intent("s2", codec.Resign{})

	msg, ok := box1.last().(codec.GameOver)
	if !ok {
		t.Fatalf("expected alice to receive game_over, got %#v", box1.last())
	}
	if msg.Winner != "alice" || msg.Reason != "Game completed" {
		t.Fatalf("expected alice to win on resignation, got %#v", msg)
	}
}
