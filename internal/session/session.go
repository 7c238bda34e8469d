// Package session implements the per-connection state machine: reading
// client frames off a WebSocket, dispatching parsed intents to the
// coordinator, and draining an outbound mailbox onto the same socket
// from a single dedicated writer goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itsakeyfut/reversi/internal/codec"
	"github.com/itsakeyfut/reversi/internal/conf"
	"github.com/itsakeyfut/reversi/internal/logging"
)

// Status mirrors coordinator.Status; it is duplicated here (rather than
// imported) so the session package does not need to depend on
// coordinator, keeping the dependency graph one-directional.
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

// Coordinator is the subset of coordinator.Coordinator a Session needs.
// Accepting an interface here, rather than the concrete type, keeps this
// package testable without a running coordinator.
type Coordinator interface {
	Connect(sessionID, username string, mailbox Mailbox) error
	Disconnect(sessionID string)
	Intent(sessionID string, msg codec.ClientMessage) error
}

// Mailbox is satisfied by *Session.
type Mailbox = codec.Mailbox

// Session owns one WebSocket connection end to end: reading frames,
// authenticating, forwarding intents, and writing every ServerMessage
// the coordinator enqueues for it.
type Session struct {
	id    string
	conn  *websocket.Conn
	coord Coordinator
	log   *logging.Logger
	cfg   *conf.Conf

	mailbox chan codec.ServerMessage

	username string
}

// New wraps conn into a Session. id should be a freshly minted UUID.
func New(id string, conn *websocket.Conn, coord Coordinator, log *logging.Logger, cfg *conf.Conf) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		coord:   coord,
		log:     log,
		cfg:     cfg,
		mailbox: make(chan codec.ServerMessage, cfg.Match.MailboxCapacity),
	}
}

// Send enqueues msg for delivery. It satisfies Mailbox and
// coordinator.Mailbox. A full mailbox means this session's writer cannot
// keep up; rather than block the coordinator, the session is torn down.
func (s *Session) Send(msg codec.ServerMessage) error {
	select {
	case s.mailbox <- msg:
		return nil
	case <-time.After(200 * time.Millisecond):
		s.conn.Close()
		return errors.New("session: mailbox full, disconnecting")
	}
}

// Run drives the session until the socket closes, the heartbeat times
// out, or ctx is cancelled. On every exit path it guarantees: the
// heartbeat ticker stops, a Disconnect is sent to the coordinator exactly
// once, and the mailbox is closed so the writer goroutine exits.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go s.writeLoop(ctx, writerDone)

	lastSeen := make(chan struct{}, 1)
	markSeen := func() {
		select {
		case lastSeen <- struct{}{}:
		default:
		}
	}
	s.conn.SetPongHandler(func(string) error {
		markSeen()
		return nil
	})

	go s.heartbeat(ctx, lastSeen)

	s.Send(codec.Success{Message: "Connected Successfully. Authentication is required."})

	s.readLoop(ctx, markSeen)

	cancel()
	s.coord.Disconnect(s.id)
	close(s.mailbox)
	<-writerDone
}

// readLoop blocks on socket reads, decoding and dispatching each text
// frame until the connection fails or ctx is cancelled. seen is touched
// on every successful read, text or binary, so an actively-messaging
// client is never treated as idle by the heartbeat.
func (s *Session) readLoop(ctx context.Context, seen func()) {
	for {
		if ctx.Err() != nil {
			return
		}

		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		seen()

		if messageType != websocket.TextMessage {
			s.Send(codec.ErrorMessage{Message: "Binary message is not supported."})
			continue
		}

		msg, err := codec.DecodeClientMessage(data)
		if err != nil {
			s.Send(codec.ErrorMessage{Message: "Invalid format received. JSON required."})
			continue
		}

		if auth, ok := msg.(codec.Authenticate); ok {
			s.handleAuthenticate(auth)
			continue
		}

		if s.username == "" {
			s.Send(codec.ErrorMessage{Message: "Authentication required."})
			continue
		}

		if err := s.coord.Intent(s.id, msg); err != nil {
			s.log.Error("session %s: intent dispatch failed: %v", s.id, err)
		}
	}
}

// handleAuthenticate completes Connecting/Online -> Idle. A second
// Authenticate once the session already has a username is rejected with
// a generic protocol error and does not mutate session state.
func (s *Session) handleAuthenticate(auth codec.Authenticate) {
	if s.username != "" {
		s.Send(codec.ErrorMessage{Message: "already authenticated"})
		return
	}

	if err := s.coord.Connect(s.id, auth.Username, s); err != nil {
		s.Send(codec.ErrorMessage{Message: "authentication failed"})
		return
	}
	s.username = auth.Username
	s.Send(codec.Success{Message: fmt.Sprintf("Authenticated successfully. Hello %s!", auth.Username)})
}

// writeLoop serializes every mailbox message onto the socket. It is the
// only goroutine that ever calls conn.WriteMessage, so no locking is
// needed around the connection for writes.
func (s *Session) writeLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.mailbox:
			if !ok {
				return
			}
			data, err := codec.EncodeServerMessage(msg)
			if err != nil {
				s.log.Error("session %s: encode failed: %v", s.id, err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// heartbeat pings the client on the configured interval and closes the
// connection if no pong (or any inbound frame) arrives within the
// client timeout.
func (s *Session) heartbeat(ctx context.Context, seen <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.Timeouts.Heartbeat())
	defer ticker.Stop()

	timeout := s.cfg.Timeouts.ClientTimeout()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(timeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.conn.Close()
				return
			}

			select {
			case <-seen:
			case <-time.After(timeout):
				s.log.Info("session %s: heartbeat timeout", s.id)
				s.conn.Close()
				return
			case <-ctx.Done():
				return
			}
		}
	}
}
