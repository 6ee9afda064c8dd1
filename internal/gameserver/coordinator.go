package gameserver

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/dropfour/internal/game/match"
	"github.com/cory-johannsen/dropfour/internal/game/rng"
)

// Coordinator is the top-level orchestrator. It owns the matchmaker and the
// connection registry, routes inbound messages, runs bot drivers, and fans
// out broadcasts. All locking lives below it: the coordinator itself only
// sequences calls and never holds a lock across a send.
type Coordinator struct {
	matchmaker  *match.Matchmaker
	registry    *Registry
	rand        rng.Source
	logger      *zap.Logger
	botDelay    time.Duration
	botMaxPlies int

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewCoordinator wires a Coordinator.
//
// Precondition: all dependencies must be non-nil; botDelay > 0; botMaxPlies > 0.
func NewCoordinator(mm *match.Matchmaker, reg *Registry, src rng.Source, botDelay time.Duration, botMaxPlies int, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		matchmaker:  mm,
		registry:    reg,
		rand:        src,
		logger:      logger,
		botDelay:    botDelay,
		botMaxPlies: botMaxPlies,
		quit:        make(chan struct{}),
	}
}

// Connect registers a new player connection and returns its outbox for the
// transport's write pump.
func (c *Coordinator) Connect(playerID string) *Outbox {
	out := c.registry.Register(playerID)
	c.logger.Info("player connected",
		zap.String("player_id", playerID),
		zap.Int("connections", c.registry.Count()),
	)
	return out
}

// Disconnect removes a player's registry entry and routing index entry.
// Their session, if any, is left in place: no forfeit, no opponent
// notification — broadcasts to the departed player are simply dropped.
func (c *Coordinator) Disconnect(playerID string) {
	c.registry.Unregister(playerID)
	c.matchmaker.DropPlayer(playerID)
	c.logger.Info("player disconnected",
		zap.String("player_id", playerID),
		zap.Int("connections", c.registry.Count()),
	)
}

// HandleMessage routes one inbound payload from playerID. Game-logic errors
// are converted to an error message for that player only; they never
// propagate and never affect the opponent.
func (c *Coordinator) HandleMessage(playerID string, raw []byte) {
	msg, err := ParseClientMessage(raw)
	if err != nil {
		c.sendError(playerID, "malformed message")
		return
	}

	switch msg.Type {
	case TypeSelectMode:
		c.handleSelectMode(playerID, msg.Mode)
	case TypeMove:
		c.handleMove(playerID, msg.Column)
	default:
		c.sendError(playerID, "unknown message type: "+msg.Type)
	}
}

func (c *Coordinator) handleSelectMode(playerID, mode string) {
	pairing, err := c.matchmaker.RequestMatch(playerID, match.Mode(mode))
	if err != nil {
		c.sendError(playerID, err.Error())
		return
	}

	gameID := pairing.Session.ID()
	c.registry.Send(playerID, mustMarshal(NewGameStatus(pairing.Started, pairing.Slot, gameID)))

	// Completing a waiting session starts it for the original joiner too.
	if pairing.OpponentID != "" {
		c.registry.Send(pairing.OpponentID, mustMarshal(NewGameStatus(true, match.SlotOne, gameID)))
	}

	c.logger.Info("match requested",
		zap.String("player_id", playerID),
		zap.String("mode", mode),
		zap.String("game_id", gameID),
		zap.Bool("started", pairing.Started),
	)

	if mode == string(match.ModeBot) {
		c.startBotDriver(pairing.Session)
	}
}

func (c *Coordinator) handleMove(playerID string, column *int) {
	sess, err := c.matchmaker.SessionFor(playerID)
	if err != nil {
		c.sendError(playerID, err.Error())
		return
	}
	if column == nil {
		c.sendError(playerID, "move requires a column")
		return
	}

	view, err := sess.MakeMove(playerID, *column)
	if err != nil {
		c.sendError(playerID, err.Error())
		return
	}

	c.logger.Debug("move applied",
		zap.String("game_id", sess.ID()),
		zap.String("player_id", playerID),
		zap.Int("column", *column),
		zap.Bool("game_over", view.GameOver),
	)

	c.settle(sess, view)
}

// settle broadcasts a post-move view to the session's human players and
// retires the session once it is terminal. Runs outside every lock.
func (c *Coordinator) settle(sess *match.Session, view match.View) {
	payload := mustMarshal(NewGameUpdate(view))
	c.registry.Broadcast(humanPlayers(sess), payload)

	if view.GameOver {
		c.matchmaker.Release(sess.ID())
		c.logger.Info("game finished",
			zap.String("game_id", sess.ID()),
			zap.Int("winner_slot", int(view.Winner)),
			zap.Int("live_sessions", c.matchmaker.SessionCount()),
		)
	}
}

func (c *Coordinator) sendError(playerID, text string) {
	c.registry.Send(playerID, mustMarshal(NewErrorMessage(text)))
}

// humanPlayers returns a session's players minus synthetic bot identities.
func humanPlayers(sess *match.Session) []string {
	players := sess.Players()
	out := players[:0]
	for _, p := range players {
		if !match.IsBot(p) {
			out = append(out, p)
		}
	}
	return out
}

// Shutdown stops all bot drivers and waits for them to exit.
func (c *Coordinator) Shutdown() {
	close(c.quit)
	c.wg.Wait()
	c.logger.Info("coordinator stopped",
		zap.Int("live_sessions", c.matchmaker.SessionCount()),
	)
}
