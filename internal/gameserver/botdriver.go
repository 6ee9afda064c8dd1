package gameserver

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/dropfour/internal/game/board"
	"github.com/cory-johannsen/dropfour/internal/game/match"
)

// startBotDriver launches the repeating task that plays slot two of a
// bot-mode session.
func (c *Coordinator) startBotDriver(sess *match.Session) {
	c.wg.Add(1)
	go c.runBotDriver(sess)
}

// runBotDriver wakes every botDelay and, whenever the session is in progress
// with the turn on slot two, plays one uniformly random legal move and
// broadcasts the result. It exits when the session reaches a terminal
// outcome, when the coordinator shuts down, or after botMaxPlies successful
// moves — a safety bound against a session that can no longer terminate,
// such as one whose human player has disconnected.
func (c *Coordinator) runBotDriver(sess *match.Session) {
	defer c.wg.Done()

	botID := match.BotID(sess.ID())
	ticker := time.NewTicker(c.botDelay)
	defer ticker.Stop()

	plies := 0
	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
		}

		if sess.Terminal() {
			return
		}
		if sess.Turn() != match.SlotTwo {
			continue
		}

		if c.playBotMove(sess, botID) {
			plies++
			if plies >= c.botMaxPlies {
				c.logger.Warn("bot driver hit ply bound, stopping",
					zap.String("game_id", sess.ID()),
					zap.Int("plies", plies),
				)
				return
			}
		}
	}
}

// playBotMove attempts one bot move, retrying with a fresh random column on
// a full-column rejection. Returns whether a move was applied.
func (c *Coordinator) playBotMove(sess *match.Session, botID string) bool {
	// Bounded retries: each attempt re-reads the open set, so a ColumnFull
	// can only come from a concurrent human move landing between snapshot
	// and apply.
	for attempt := 0; attempt < board.Cols; attempt++ {
		open := sess.OpenColumns()
		if len(open) == 0 {
			return false
		}
		col := open[c.rand.Intn(len(open))]

		view, err := sess.MakeMove(botID, col)
		switch {
		case err == nil:
			c.settle(sess, view)
			return true
		case errors.Is(err, board.ErrColumnFull):
			continue
		default:
			// Turn changed or game ended under us; yield until next tick.
			return false
		}
	}

	c.logger.Warn("bot move retries exhausted",
		zap.String("game_id", sess.ID()),
	)
	return false
}
