// Package ws provides the WebSocket transport: it accepts connections,
// assigns each an opaque player identifier, feeds inbound frames to the
// session coordinator, and drains the player's outbox back to the peer.
package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/dropfour/internal/config"
	"github.com/cory-johannsen/dropfour/internal/gameserver"
)

// Handler is the coordinator-facing side of the transport. The transport
// calls Connect once per accepted connection, HandleMessage for each inbound
// frame in order, and Disconnect exactly once when the connection ends.
type Handler interface {
	Connect(playerID string) *gameserver.Outbox
	Disconnect(playerID string)
	HandleMessage(playerID string, raw []byte)
}

// Acceptor serves WebSocket upgrades on /ws and bridges each connection to
// the Handler.
type Acceptor struct {
	cfg     config.WebSocketConfig
	handler Handler
	logger  *zap.Logger

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	upgrader websocket.Upgrader

	mu      sync.Mutex
	running bool
	conns   map[*websocket.Conn]struct{}
}

// NewAcceptor creates a WebSocket acceptor with the given configuration.
//
// Precondition: cfg must be validated; handler and logger must be non-nil.
func NewAcceptor(cfg config.WebSocketConfig, handler Handler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		conns:   make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The coordinator has no cross-origin state to protect; clients
			// are identified per-connection only.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ListenAndServe starts the HTTP listener and serves WebSocket upgrades
// until Stop is called. Blocks until the listener closes.
func (a *Acceptor) ListenAndServe() error {
	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.handleUpgrade)

	a.mu.Lock()
	a.listener = listener
	a.server = &http.Server{Handler: mux}
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
	)

	if err := a.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down and waits for connection goroutines.
//
// Postcondition: all connections are closed and pumps have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	server := a.server
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		_ = server.Close()
	}

	// Shutdown does not touch hijacked connections, so close them explicitly
	// to unblock the read pumps.
	a.mu.Lock()
	for conn := range a.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	a.mu.Unlock()
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or "" before ListenAndServe.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// handleUpgrade accepts one WebSocket connection and runs its pumps.
func (a *Acceptor) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		_ = conn.Close()
		return
	}
	a.conns[conn] = struct{}{}
	a.mu.Unlock()

	playerID := uuid.NewString()
	outbox := a.handler.Connect(playerID)

	a.logger.Info("client connected",
		zap.String("player_id", playerID),
		zap.String("remote_addr", r.RemoteAddr),
	)

	a.wg.Add(1)
	go a.writePump(conn, outbox, playerID)

	a.wg.Add(1)
	go a.readPump(conn, outbox, playerID, r.RemoteAddr)
}

// readPump reads inbound frames in order and hands them to the Handler.
// When the read side fails (peer gone, timeout, close frame) it tears the
// connection down.
func (a *Acceptor) readPump(conn *websocket.Conn, outbox *gameserver.Outbox, playerID, remoteAddr string) {
	defer a.wg.Done()
	start := time.Now()

	defer func() {
		a.mu.Lock()
		delete(a.conns, conn)
		a.mu.Unlock()

		a.handler.Disconnect(playerID)
		outbox.Close()
		_ = conn.Close()
		a.logger.Info("client disconnected",
			zap.String("player_id", playerID),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	})

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.logger.Debug("websocket read error",
					zap.String("player_id", playerID),
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		a.handler.HandleMessage(playerID, raw)
	}
}

// writePump drains the outbox to the peer and keeps the connection alive
// with periodic pings. Exits when the outbox closes or a write fails.
func (a *Acceptor) writePump(conn *websocket.Conn, outbox *gameserver.Outbox, playerID string) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-outbox.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				a.logger.Debug("websocket write failed",
					zap.String("player_id", playerID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
