package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
	"github.com/oggyb/matchpoint/internal/identity"
	"github.com/oggyb/matchpoint/internal/metrics"
)

// PersistenceGateway is the durable message store consumed by the server.
// It may be slow; the broadcast waits for it. Implemented by
// repository.MessageRepository.
type PersistenceGateway interface {
	Store(ctx context.Context, matchID, senderID, text string) (*db.Message, error)
}

// IdentityResolver resolves a bearer token into an identity. Implemented by
// identity.Provider.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (identity.Identity, error)
}

// ServerConfig holds tunable parameters for the chat server.
type ServerConfig struct {
	ListenAddr   string        // address to listen on, e.g. ":8080"
	AuthTimeout  time.Duration // budget for token resolution + room lookup
	WriteTimeout time.Duration // budget for persisting one message
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:   ":8080",
		AuthTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Registrar is a common interface for components mounting routes on the
// server's mux, e.g. the REST API handler.
type Registrar interface {
	Register(mux *http.ServeMux)
}

// Server hosts the WebSocket endpoint /ws/chat/{matchID}?token=... and runs
// the per-connection gate: Connecting → Authenticated → RoomJoined → Active
// → Closed. Each connection is served by its own goroutine; frames from one
// connection are processed strictly in arrival order.
type Server struct {
	config     ServerConfig
	registry   *Registry
	identity   IdentityResolver
	store      PersistenceGateway
	logger     *slog.Logger
	registrars []Registrar

	httpServer *http.Server
	startedAt  time.Time
}

// NewServer wires the gate's collaborators together. Additional registrars
// mount their routes next to the chat endpoint.
func NewServer(config ServerConfig, registry *Registry, resolver IdentityResolver, store PersistenceGateway, logger *slog.Logger, registrars ...Registrar) *Server {
	return &Server{
		config:     config,
		registry:   registry,
		identity:   resolver,
		store:      store,
		logger:     logger,
		registrars: registrars,
	}
}

// Handler returns the server's HTTP routing table: the chat endpoint plus
// the health and metrics surfaces.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat/", s.handleChat)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	for _, r := range s.registrars {
		r.Register(mux)
	}
	return mux
}

// Start begins accepting connections and blocks until the listener stops.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: s.Handler(),
	}

	s.logger.Info("chat server listening", "addr", s.config.ListenAddr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and force-closes every open room.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.registry.CloseAll()
	return err
}

// handleChat upgrades the HTTP request and hands the socket to the gate.
// The room id is embedded in the path, the credential in the token query
// parameter.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	matchID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/chat/"), "/")
	token := r.URL.Query().Get("token")

	netConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	go s.serve(netConn, matchID, token)
}

// serve runs one connection through the gate and, once Active, its read
// loop. Membership release is guaranteed on every exit path.
func (s *Server) serve(netConn net.Conn, matchID, token string) {
	conn := NewConnection(uuid.NewString(), netConn)
	defer func() {
		s.registry.Leave(conn)
		_ = conn.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.AuthTimeout)
	defer cancel()

	// Connecting → Authenticated
	id, err := s.identity.Resolve(ctx, token)
	if err != nil {
		s.logger.Debug("connection rejected", "conn_id", conn.ID, "reason", "unauthenticated")
		conn.CloseWithStatus(CloseUnauthorized, "invalid credential")
		return
	}

	// Authenticated → RoomJoined
	if _, err := uuid.Parse(matchID); err != nil {
		s.logger.Debug("connection rejected", "conn_id", conn.ID, "reason", "bad room reference")
		conn.CloseWithStatus(CloseBadRoom, "malformed room reference")
		return
	}
	if err := s.registry.Join(ctx, conn, matchID, id.ProfileID); err != nil {
		code, reason := joinRejection(err)
		s.logger.Debug("connection rejected",
			"conn_id", conn.ID, "match_id", matchID, "profile_id", id.ProfileID, "reason", reason)
		conn.CloseWithStatus(code, reason)
		return
	}

	// RoomJoined → Active
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()
	s.logger.Info("connection active",
		"conn_id", conn.ID, "match_id", matchID, "profile_id", id.ProfileID)

	for {
		data, op, err := wsutil.ReadClientData(netConn)
		if err != nil {
			// Peer disconnect, room teardown or protocol error; the deferred
			// Leave releases membership in all cases.
			return
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}
		if len(data) == 0 {
			continue
		}
		s.handleFrame(conn, data)
	}
}

// joinRejection maps a registry rejection to its close code.
func joinRejection(err error) (ws.StatusCode, string) {
	switch {
	case errors.Is(err, svcErr.ErrForbidden):
		return CloseForbidden, "not a participant"
	case errors.Is(err, svcErr.ErrRoomClosed):
		return CloseRoomClosed, "room closed"
	default:
		return CloseBadRoom, "unknown room"
	}
}

// handleFrame validates one inbound frame, persists the message and fans it
// out to the room, the author included. Validation and persistence failures
// are reported to the sender only; the connection stays active.
func (s *Server) handleFrame(conn *Connection, data []byte) {
	text, err := decodeInbound(data)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		_ = conn.WriteText(newErrorFrame(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()

	// Durable write happens-before the broadcast; on failure nothing is
	// fanned out, so there is never a delivered message without a record.
	msg, err := s.store.Store(ctx, conn.MatchID, conn.ProfileID, text)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		s.logger.Error("message persistence failed",
			"conn_id", conn.ID, "match_id", conn.MatchID, "err", err)
		_ = conn.WriteText(newErrorFrame("Failed to save message."))
		return
	}

	delivered := s.registry.Publish(conn.MatchID, newBroadcast(text, conn.ProfileID, msg.CreatedAt))
	metrics.MessagesTotal.WithLabelValues("delivered").Inc()
	s.logger.Debug("message published",
		"match_id", conn.MatchID, "sender", conn.ProfileID, "fan_out", delivered)
}

// handleHealth reports liveness plus basic counters as JSON.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	}
	_ = json.NewEncoder(w).Encode(resp)
}
