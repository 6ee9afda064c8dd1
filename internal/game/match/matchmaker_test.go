package match

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMatch_BotStartsImmediately(t *testing.T) {
	m := NewMatchmaker(time.Minute)

	p, err := m.RequestMatch("alice", ModeBot)
	require.NoError(t, err)
	assert.Equal(t, SlotOne, p.Slot)
	assert.True(t, p.Started)
	assert.Empty(t, p.OpponentID)
	assert.Equal(t, StateInProgress, p.Session.State())

	bot := p.Session.Players()[1]
	assert.True(t, IsBot(bot))
	assert.Equal(t, BotID(p.Session.ID()), bot)

	s, err := m.SessionFor("alice")
	require.NoError(t, err)
	assert.Same(t, p.Session, s)
	assert.Empty(t, m.Waiting(), "bot sessions never enter the waiting pool")
}

func TestRequestMatch_HumanWaits(t *testing.T) {
	m := NewMatchmaker(time.Minute)

	p, err := m.RequestMatch("alice", ModeHuman)
	require.NoError(t, err)
	assert.Equal(t, SlotOne, p.Slot)
	assert.False(t, p.Started)
	assert.Equal(t, StateWaiting, p.Session.State())
	assert.Equal(t, p.Session.ID(), m.Waiting())
	assert.Equal(t, 1, m.SessionCount())
}

func TestRequestMatch_HumanPairs(t *testing.T) {
	m := NewMatchmaker(time.Minute)

	first, err := m.RequestMatch("alice", ModeHuman)
	require.NoError(t, err)

	second, err := m.RequestMatch("bob", ModeHuman)
	require.NoError(t, err)
	assert.Same(t, first.Session, second.Session)
	assert.Equal(t, SlotTwo, second.Slot)
	assert.True(t, second.Started)
	assert.Equal(t, "alice", second.OpponentID)

	assert.Equal(t, StateInProgress, first.Session.State())
	assert.Empty(t, m.Waiting(), "pairing must clear the pool")
	assert.Equal(t, 1, m.SessionCount())
}

func TestRequestMatch_InvalidMode(t *testing.T) {
	m := NewMatchmaker(time.Minute)

	_, err := m.RequestMatch("alice", Mode("tournament"))
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, 0, m.SessionCount(), "no session may be created for an invalid mode")

	_, err = m.SessionFor("alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRequestMatch_TwoConcurrentJoiners(t *testing.T) {
	m := NewMatchmaker(time.Minute)

	var wg sync.WaitGroup
	results := make([]Pairing, 2)
	for i, id := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			p, err := m.RequestMatch(id, ModeHuman)
			require.NoError(t, err)
			results[i] = p
		}(i, id)
	}
	wg.Wait()

	// Exactly one session, with the callers in distinct slots.
	require.Equal(t, 1, m.SessionCount())
	assert.Same(t, results[0].Session, results[1].Session)
	slots := map[Slot]bool{results[0].Slot: true, results[1].Slot: true}
	assert.Equal(t, map[Slot]bool{SlotOne: true, SlotTwo: true}, slots)

	// Whichever caller completed the pairing took slot two and was told who
	// the waiting creator is; the creator is never their own opponent.
	ids := []string{"alice", "bob"}
	started := 0
	for i, p := range results {
		if p.Started {
			started++
			assert.Equal(t, SlotTwo, p.Slot)
			assert.Equal(t, ids[1-i], p.OpponentID)
		} else {
			assert.Equal(t, SlotOne, p.Slot)
			assert.Empty(t, p.OpponentID)
		}
	}
	assert.Equal(t, 1, started)
}

func TestWaitingSessionSeatedBeforeVisible(t *testing.T) {
	// A session must never be observable in the pool with no seats taken;
	// otherwise a concurrent joiner could claim slot one and end up paired
	// with themselves as opponent.
	m := NewMatchmaker(time.Minute)

	stop := make(chan struct{})
	seatless := make(chan string, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			m.mu.Lock()
			w := m.waiting
			m.mu.Unlock()
			if w != nil && len(w.Players()) == 0 {
				select {
				case seatless <- w.ID():
				default:
				}
				return
			}
		}
	}()

	for i := 0; i < 500; i++ {
		p, err := m.RequestMatch(fmt.Sprintf("p%d", i), ModeHuman)
		require.NoError(t, err)
		require.Equal(t, SlotOne, p.Slot)
		m.Release(p.Session.ID())
	}
	close(stop)
	wg.Wait()

	select {
	case id := <-seatless:
		t.Fatalf("session %s was visible in the pool before its creator was seated", id)
	default:
	}
}

func TestRequestMatch_ConcurrentJoinersAlwaysPairOff(t *testing.T) {
	m := NewMatchmaker(time.Minute)
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := m.RequestMatch(fmt.Sprintf("p%d", i), ModeHuman)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// An even number of joiners leaves no one waiting.
	assert.Equal(t, n/2, m.SessionCount())
	assert.Empty(t, m.Waiting())
	for i := 0; i < n; i++ {
		s, err := m.SessionFor(fmt.Sprintf("p%d", i))
		require.NoError(t, err)
		assert.Equal(t, StateInProgress, s.State())
	}
}

func TestWaitingSessionExpires(t *testing.T) {
	m := NewMatchmaker(20 * time.Millisecond)

	p, err := m.RequestMatch("alice", ModeHuman)
	require.NoError(t, err)
	require.Equal(t, 1, m.SessionCount())

	assert.Eventually(t, func() bool {
		return m.SessionCount() == 0 && m.Waiting() == ""
	}, time.Second, 5*time.Millisecond, "unmatched session %s should expire", p.Session.ID())

	_, err = m.SessionFor("alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMatchedSessionUnaffectedByLateTimeout(t *testing.T) {
	m := NewMatchmaker(30 * time.Millisecond)

	_, err := m.RequestMatch("alice", ModeHuman)
	require.NoError(t, err)
	_, err = m.RequestMatch("bob", ModeHuman)
	require.NoError(t, err)

	// Let the original timeout fire; the matched session must survive it.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, m.SessionCount())
	s, err := m.SessionFor("alice")
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, s.State())
}

func TestTimeoutIsIdentifierScoped(t *testing.T) {
	m := NewMatchmaker(100 * time.Millisecond)

	// Session A waits, then is matched; session B starts waiting afterwards.
	// A's timer fires while B waits and must not evict B.
	a, err := m.RequestMatch("alice", ModeHuman)
	require.NoError(t, err)
	_, err = m.RequestMatch("bob", ModeHuman)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	b, err := m.RequestMatch("carol", ModeHuman)
	require.NoError(t, err)
	require.NotEqual(t, a.Session.ID(), b.Session.ID())

	// t=120ms: A's timer has fired; B (t=60ms + 100ms = 160ms) has not expired.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, b.Session.ID(), m.Waiting(), "a stale timeout must not evict a later waiting session")

	// B's own timer eventually evicts it.
	assert.Eventually(t, func() bool { return m.Waiting() == "" }, time.Second, 5*time.Millisecond)
}

func TestRequestMatch_RepeatHumanRequestIsIdempotent(t *testing.T) {
	m := NewMatchmaker(time.Minute)

	first, err := m.RequestMatch("alice", ModeHuman)
	require.NoError(t, err)

	// Asking again while still waiting must not pair alice with herself.
	again, err := m.RequestMatch("alice", ModeHuman)
	require.NoError(t, err)
	assert.Same(t, first.Session, again.Session)
	assert.Equal(t, SlotOne, again.Slot)
	assert.False(t, again.Started)
	assert.Empty(t, again.OpponentID)
	assert.Equal(t, first.Session.ID(), m.Waiting())
	assert.Equal(t, 1, m.SessionCount())

	// A real opponent still pairs normally afterwards.
	bob, err := m.RequestMatch("bob", ModeHuman)
	require.NoError(t, err)
	assert.Equal(t, SlotTwo, bob.Slot)
	assert.Equal(t, "alice", bob.OpponentID)
	assert.Equal(t, []string{"alice", "bob"}, first.Session.Players())
}

func TestSecondMatchRepointsRouting(t *testing.T) {
	// A player already seated in a live session may request another match;
	// the routing index follows the newest session and the old one becomes
	// unroutable for them.
	m := NewMatchmaker(time.Minute)

	first, err := m.RequestMatch("alice", ModeBot)
	require.NoError(t, err)
	second, err := m.RequestMatch("alice", ModeBot)
	require.NoError(t, err)
	require.NotEqual(t, first.Session.ID(), second.Session.ID())

	s, err := m.SessionFor("alice")
	require.NoError(t, err)
	assert.Same(t, second.Session, s)
	assert.Equal(t, 2, m.SessionCount(), "the abandoned session stays live")

	// Releasing the old session must not disturb the re-pointed index.
	m.Release(first.Session.ID())
	s, err = m.SessionFor("alice")
	require.NoError(t, err)
	assert.Same(t, second.Session, s)
}

func TestRelease(t *testing.T) {
	m := NewMatchmaker(time.Minute)

	p, err := m.RequestMatch("alice", ModeBot)
	require.NoError(t, err)

	m.Release(p.Session.ID())
	assert.Equal(t, 0, m.SessionCount())
	_, err = m.SessionFor("alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Releasing twice is harmless.
	m.Release(p.Session.ID())
}

func TestRelease_ClearsWaitingPool(t *testing.T) {
	m := NewMatchmaker(time.Minute)

	p, err := m.RequestMatch("alice", ModeHuman)
	require.NoError(t, err)

	m.Release(p.Session.ID())
	assert.Empty(t, m.Waiting())
	assert.Equal(t, 0, m.SessionCount())
}

func TestDropPlayer_LeavesSessionInPlace(t *testing.T) {
	m := NewMatchmaker(time.Minute)

	p, err := m.RequestMatch("alice", ModeHuman)
	require.NoError(t, err)
	_, err = m.RequestMatch("bob", ModeHuman)
	require.NoError(t, err)

	// Disconnect clears routing only: no forfeit, the session stays live
	// and the opponent keeps their seat.
	m.DropPlayer("alice")
	_, err = m.SessionFor("alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	s, err := m.SessionFor("bob")
	require.NoError(t, err)
	assert.Same(t, p.Session, s)
	assert.Equal(t, StateInProgress, s.State())
}

func TestBotID(t *testing.T) {
	assert.True(t, IsBot(BotID("g1")))
	assert.False(t, IsBot("g1"))
	assert.False(t, IsBot(""))
	assert.False(t, IsBot("bot:"))
}
