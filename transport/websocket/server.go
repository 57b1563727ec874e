package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/stakearena/arena-backend/internal/pkg"
	"github.com/stakearena/arena-backend/internal/session"
)

const writeTimeout = 10 * time.Second

type handlerFunc func(ctx context.Context, conn *websocket.Conn, msg *Message) error

// Server speaks the session protocol over a persistent websocket per
// client. It keeps a connection registry keyed by player ID and is the
// session manager's event sink.
type Server struct {
	logger  *slog.Logger
	manager *session.Manager

	handlers map[string]handlerFunc

	connectionsMutex sync.RWMutex
	connections      map[string]*websocket.Conn
	identities       map[*websocket.Conn]string
}

func New(logger *slog.Logger, manager *session.Manager) *Server {
	server := &Server{
		logger:      logger.With("component", "websocket"),
		manager:     manager,
		handlers:    make(map[string]handlerFunc),
		connections: make(map[string]*websocket.Conn),
		identities:  make(map[*websocket.Conn]string),
	}

	server.handlers[actionJoinGame] = server.handleJoinGame
	server.handlers[actionLeaveQueue] = server.handleLeaveQueue
	server.handlers[actionGameAction] = server.handleGameAction
	server.handlers[actionRejoinGame] = server.handleRejoinGame
	server.handlers[actionRequestFullSync] = server.handleRequestFullSync

	return server
}

// Start - starts the WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.acceptConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) acceptConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "acceptConnection")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checks are the gateway's job
	})
	if err != nil {
		log.Error("failed to accept websocket connection", "error", err)
		return
	}

	connID := pkg.GenerateNewSessionID()
	log.Info("WebSocket connection established", "connID", connID)

	that.handleMessages(ctx, conn, connID)
}

// handleMessages - processes messages from the client until the
// connection drops, then hands the disconnect to the session layer.
func (that *Server) handleMessages(ctx context.Context, conn *websocket.Conn, connID string) {
	log := that.logger.With("method", "handleMessages", "connID", connID)

	defer that.handleDisconnect(conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Info("connection closed", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		if err = handler(ctx, conn, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

func (that *Server) handleDisconnect(conn *websocket.Conn) {
	log := that.logger.With("method", "handleDisconnect")

	that.connectionsMutex.Lock()
	playerID, ok := that.identities[conn]
	if ok {
		delete(that.identities, conn)
		// Only drop the registry entry if it still points at this
		// connection; a reconnect may have replaced it already.
		if that.connections[playerID] == conn {
			delete(that.connections, playerID)
		}
	}
	that.connectionsMutex.Unlock()

	_ = conn.CloseNow()

	if !ok {
		return
	}

	log.Info("player disconnected", "playerID", playerID)

	that.manager.Disconnected(playerID)
}

// registerConnection binds a connection to a player identity.
func (that *Server) registerConnection(playerID string, conn *websocket.Conn) {
	that.connectionsMutex.Lock()
	that.connections[playerID] = conn
	that.identities[conn] = playerID
	that.connectionsMutex.Unlock()
}

func (that *Server) connection(playerID string) (*websocket.Conn, bool) {
	that.connectionsMutex.RLock()
	conn, ok := that.connections[playerID]
	that.connectionsMutex.RUnlock()

	return conn, ok
}

func (that *Server) sendMessage(conn *websocket.Conn, action string, payload Payload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	response := Message{
		Action:  action,
		Payload: payloadBytes,
	}
	responseBytes, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err = conn.Write(ctx, websocket.MessageText, responseBytes); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *Server) sendToPlayer(playerID, action string, payload Payload) {
	log := that.logger.With("method", "sendToPlayer", "playerID", playerID, "action", action)

	conn, ok := that.connection(playerID)
	if !ok {
		log.Warn("connection not found for player")
		return
	}

	if err := that.sendMessage(conn, action, payload); err != nil {
		log.Error("failed to send message", "error", err)
	}
}

func (that *Server) sendErrorResponse(conn *websocket.Conn, action, errorMsg string) error {
	payload := Payload{Error: errorMsg}
	if err := that.sendMessage(conn, action, payload); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}
