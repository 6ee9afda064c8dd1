package match

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode selects the opponent kind for a match request.
type Mode string

// Supported match modes.
const (
	ModeBot   Mode = "bot"
	ModeHuman Mode = "human"
)

// botPrefix namespaces synthetic bot identities so they can never collide
// with connection UUIDs.
const botPrefix = "bot:"

// BotID returns the synthetic slot-two identity for a bot-driven session.
func BotID(gameID string) string {
	return botPrefix + gameID
}

// IsBot reports whether playerID is a synthetic bot identity.
func IsBot(playerID string) bool {
	return len(playerID) > len(botPrefix) && playerID[:len(botPrefix)] == botPrefix
}

// Pairing is the outcome of a successful match request.
type Pairing struct {
	// Session is the session the requester was seated in.
	Session *Session
	// Slot is the requester's seat.
	Slot Slot
	// Started is false while the session is waiting for a second human.
	Started bool
	// OpponentID is the slot-one player when the requester completed a
	// waiting session, so the caller can notify them too. Empty otherwise.
	OpponentID string
}

// Matchmaker pairs players into sessions. It owns the live-session set, the
// single-slot waiting pool, and the player-to-session routing index.
//
// The matchmaker mutex guards only pool and index mutation; it is never held
// across a session's own critical section or any channel send, so the two
// exclusion domains cannot deadlock.
type Matchmaker struct {
	waitTimeout time.Duration
	newID       func() string

	mu       sync.Mutex
	sessions map[string]*Session // gameID → session
	byPlayer map[string]string   // playerID → gameID
	waiting  *Session            // at most one session awaiting slot two
}

// NewMatchmaker creates a Matchmaker whose waiting sessions expire after
// waitTimeout without a second joiner.
//
// Precondition: waitTimeout > 0.
func NewMatchmaker(waitTimeout time.Duration) *Matchmaker {
	return &Matchmaker{
		waitTimeout: waitTimeout,
		newID:       uuid.NewString,
		sessions:    make(map[string]*Session),
		byPlayer:    make(map[string]string),
	}
}

// RequestMatch seats playerID according to mode.
//
// Mode bot: a new session starts immediately with a synthetic bot in slot
// two. Mode human: the requester either opens a new waiting session or
// completes the one in the pool; completing it clears the pool, and the
// pending expiry becomes a no-op. The waiting creator repeating the request
// gets their existing waiting Pairing back. Any other mode fails with
// ErrInvalidMode and creates nothing.
//
// A player who requests a second match while already seated is re-pointed:
// the routing index follows the newest session, and moves are no longer
// routable to the old one.
func (m *Matchmaker) RequestMatch(playerID string, mode Mode) (Pairing, error) {
	switch mode {
	case ModeBot:
		return m.startBotMatch(playerID), nil
	case ModeHuman:
		return m.startHumanMatch(playerID), nil
	default:
		return Pairing{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

func (m *Matchmaker) startBotMatch(playerID string) Pairing {
	s := NewSession(m.newID())
	// A fresh session cannot refuse its first two joins.
	slot, _ := s.Join(playerID)
	_, _ = s.Join(BotID(s.ID()))

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.byPlayer[playerID] = s.ID()
	m.mu.Unlock()

	return Pairing{Session: s, Slot: slot, Started: true}
}

func (m *Matchmaker) startHumanMatch(playerID string) Pairing {
	m.mu.Lock()
	if pending := m.waiting; pending != nil {
		// Re-requesting while already the waiting creator is idempotent;
		// a player cannot pair with themselves.
		if pending.Players()[0] == playerID {
			m.mu.Unlock()
			return Pairing{Session: pending, Slot: SlotOne, Started: false}
		}

		// Complete the waiting session. The pool is cleared under the lock
		// so no other joiner can claim slot two.
		m.waiting = nil
		m.byPlayer[playerID] = pending.ID()
		m.mu.Unlock()

		slot, _ := pending.Join(playerID)
		opponent := pending.Players()[0]
		return Pairing{Session: pending, Slot: slot, Started: true, OpponentID: opponent}
	}

	s := NewSession(m.newID())
	// Seat the creator before the session becomes visible in the pool: a
	// joiner who finds it there can only ever take slot two.
	slot, _ := s.Join(playerID)
	m.sessions[s.ID()] = s
	m.byPlayer[playerID] = s.ID()
	m.waiting = s
	m.mu.Unlock()

	time.AfterFunc(m.waitTimeout, func() { m.expire(s.ID()) })

	return Pairing{Session: s, Slot: slot, Started: false}
}

// expire removes the waiting session identified by gameID if it is still the
// one in the pool. The check is identifier-based so a timeout firing after
// its session was matched, or after a different session started waiting,
// does nothing.
func (m *Matchmaker) expire(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.waiting == nil || m.waiting.ID() != gameID {
		return
	}
	for _, p := range m.waiting.Players() {
		if m.byPlayer[p] == gameID {
			delete(m.byPlayer, p)
		}
	}
	delete(m.sessions, gameID)
	m.waiting = nil
}

// SessionFor returns the session playerID's moves route to.
//
// Postcondition: returns ErrSessionNotFound when the player has no live
// session.
func (m *Matchmaker) SessionFor(playerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gameID, ok := m.byPlayer[playerID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s, ok := m.sessions[gameID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Release removes a finished session from the live set and clears the
// routing index for its players. Entries re-pointed to a newer session are
// left alone.
func (m *Matchmaker) Release(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[gameID]
	if !ok {
		return
	}
	for _, p := range s.Players() {
		if m.byPlayer[p] == gameID {
			delete(m.byPlayer, p)
		}
	}
	if m.waiting != nil && m.waiting.ID() == gameID {
		m.waiting = nil
	}
	delete(m.sessions, gameID)
}

// DropPlayer clears playerID's routing index entry on disconnect. The
// session itself is left as-is: a disconnected player's game is not
// forfeited and the opponent is not notified.
func (m *Matchmaker) DropPlayer(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byPlayer, playerID)
}

// SessionCount returns the number of live sessions.
func (m *Matchmaker) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Waiting returns the game id of the session in the waiting pool, or "".
func (m *Matchmaker) Waiting() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.waiting == nil {
		return ""
	}
	return m.waiting.ID()
}
