// Package matchmaking implements the FIFO pairing queue and pending-match
// bookkeeping used by the coordinator. It holds no goroutine of its own:
// every method is a plain, non-concurrent mutation of the Service value,
// safe only because the coordinator is the single caller.
package matchmaking

import "time"

// QueueEntry is a single waiting player.
type QueueEntry struct {
	UserID   string
	Username string
	Rating   uint32
	JoinedAt time.Time
}

// PendingMatch is a freshly-paired match awaiting the coordinator to turn
// it into a Game. The ready flags are retained for protocol extensibility
// (see SetPlayerReady) but unused by the current coordinator.
type PendingMatch struct {
	MatchID       string
	Player1ID     string
	Player1Name   string
	Player2ID     string
	Player2Name   string
	CreatedAt     time.Time
	Player1Ready  bool
	Player2Ready  bool
}

// NewMatchID is supplied by the caller so Service stays free of a hidden
// randomness dependency; the coordinator passes a uuid.NewString value.
type NewMatchID func() string

// Service holds the waiting queue and the set of matches paired but not
// yet turned into a Game.
type Service struct {
	queue       map[string]QueueEntry
	queueOrder  []string
	pending     map[string]PendingMatch
}

// New returns an empty matchmaking service.
func New() *Service {
	return &Service{
		queue:   make(map[string]QueueEntry),
		pending: make(map[string]PendingMatch),
	}
}

// AddToQueue inserts userID if not already present. Returns false on a
// no-op duplicate.
func (s *Service) AddToQueue(userID, username string, rating uint32, joinedAt time.Time) bool {
	if _, ok := s.queue[userID]; ok {
		return false
	}
	s.queue[userID] = QueueEntry{UserID: userID, Username: username, Rating: rating, JoinedAt: joinedAt}
	s.queueOrder = append(s.queueOrder, userID)
	return true
}

// RemoveFromQueue removes userID from the queue. Returns false if it was
// not present.
func (s *Service) RemoveFromQueue(userID string) bool {
	if _, ok := s.queue[userID]; !ok {
		return false
	}
	delete(s.queue, userID)
	for i, id := range s.queueOrder {
		if id == userID {
			s.queueOrder = append(s.queueOrder[:i], s.queueOrder[i+1:]...)
			break
		}
	}
	return true
}

// InQueue reports whether userID is currently waiting.
func (s *Service) InQueue(userID string) bool {
	_, ok := s.queue[userID]
	return ok
}

// FindMatches pops waiting entries two at a time, oldest first, and mints
// a PendingMatch for each pair, until fewer than two remain. newID is
// called once per pair to mint MatchID.
func (s *Service) FindMatches(now time.Time, newID NewMatchID) []PendingMatch {
	var out []PendingMatch

	for len(s.queueOrder) >= 2 {
		id1 := s.queueOrder[0]
		id2 := s.queueOrder[1]
		e1, ok1 := s.queue[id1]
		e2, ok2 := s.queue[id2]
		if !ok1 || !ok2 {
			// Defensive: normally unreachable, since queueOrder and
			// queue are kept in lockstep by AddToQueue/RemoveFromQueue.
			// If the second pop fails mid-iteration, the first popped
			// entry is still valid and waiting, so push it back at the
			// head rather than drop it.
			s.queueOrder = s.queueOrder[2:]
			if ok1 {
				s.queueOrder = append([]string{id1}, s.queueOrder...)
			}
			continue
		}

		s.queueOrder = s.queueOrder[2:]
		delete(s.queue, id1)
		delete(s.queue, id2)

		pm := PendingMatch{
			MatchID:     newID(),
			Player1ID:   e1.UserID,
			Player1Name: e1.Username,
			Player2ID:   e2.UserID,
			Player2Name: e2.Username,
			CreatedAt:   now,
		}
		s.pending[pm.MatchID] = pm
		out = append(out, pm)
	}

	return out
}

// CleanupPendingMatches removes and returns every pending match older
// than timeout, measured against now.
func (s *Service) CleanupPendingMatches(now time.Time, timeout time.Duration) []PendingMatch {
	var expired []PendingMatch
	for id, pm := range s.pending {
		if now.Sub(pm.CreatedAt) > timeout {
			expired = append(expired, pm)
			delete(s.pending, id)
		}
	}
	return expired
}

// FindPendingMatchForUser returns the first pending match mentioning
// userID, if any.
func (s *Service) FindPendingMatchForUser(userID string) (PendingMatch, bool) {
	for _, pm := range s.pending {
		if pm.Player1ID == userID || pm.Player2ID == userID {
			return pm, true
		}
	}
	return PendingMatch{}, false
}

// SetPlayerReady marks userID ready within matchID. Returns (bothReady,
// true) on success, or (false, false) if matchID is unknown or userID is
// not one of its two participants. Unused by the current coordinator
// event handling; retained for protocol evolution.
func (s *Service) SetPlayerReady(matchID, userID string) (bool, bool) {
	pm, ok := s.pending[matchID]
	if !ok {
		return false, false
	}

	switch userID {
	case pm.Player1ID:
		pm.Player1Ready = true
	case pm.Player2ID:
		pm.Player2Ready = true
	default:
		return false, false
	}

	s.pending[matchID] = pm
	return pm.Player1Ready && pm.Player2Ready, true
}
