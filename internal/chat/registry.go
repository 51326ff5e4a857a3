package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
	"github.com/oggyb/matchpoint/internal/metrics"
)

// MatchLookup is the collaborator that decides whether a room is joinable.
// Implemented by repository.MatchRepository.
type MatchLookup interface {
	Get(ctx context.Context, matchID string) (*db.Match, error)
	IsParticipant(profileID string, match *db.Match) bool
}

// Registry tracks room membership and fans out published messages. Room
// identity is the match id; a room is open iff its match is active. The
// registry is non-persistent: a connection that joins after a publish never
// receives that publish here.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Connection]struct{}
	members map[*Connection]string // connection -> room it occupies

	matches MatchLookup
	logger  *slog.Logger
}

// NewRegistry creates an empty Registry using the given match lookup.
func NewRegistry(matches MatchLookup, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:   make(map[string]map[*Connection]struct{}),
		members: make(map[*Connection]string),
		matches: matches,
		logger:  logger,
	}
}

// Join verifies that identity participates in an active match with the given
// id and registers the connection under the room. Multiple connections (e.g.
// multiple devices of the same profile) may occupy the same room; each
// receives all subsequent publishes.
//
// Typed rejections: errors.ErrNotFound (no such match), errors.ErrRoomClosed
// (match inactive), errors.ErrForbidden (not a participant).
func (r *Registry) Join(ctx context.Context, conn *Connection, matchID, profileID string) error {
	match, err := r.matches.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.IsActive {
		return svcErr.ErrRoomClosed
	}
	if !r.matches.IsParticipant(profileID, match) {
		return svcErr.ErrForbidden
	}

	r.mu.Lock()
	room, ok := r.rooms[matchID]
	if !ok {
		room = make(map[*Connection]struct{})
		r.rooms[matchID] = room
		metrics.RoomsActive.Inc()
	}
	room[conn] = struct{}{}
	r.members[conn] = matchID
	conn.ProfileID = profileID
	conn.MatchID = matchID
	r.mu.Unlock()

	r.logger.Debug("connection joined room",
		"conn_id", conn.ID, "match_id", matchID, "profile_id", profileID)
	return nil
}

// Leave removes the connection from whatever room it occupies. Safe to call
// multiple times and on connections that never joined.
func (r *Registry) Leave(conn *Connection) {
	r.mu.Lock()
	matchID, ok := r.members[conn]
	if ok {
		delete(r.members, conn)
		if room, found := r.rooms[matchID]; found {
			delete(room, conn)
			if len(room) == 0 {
				delete(r.rooms, matchID)
				metrics.RoomsActive.Dec()
			}
		}
	}
	r.mu.Unlock()

	if ok {
		r.logger.Debug("connection left room", "conn_id", conn.ID, "match_id", matchID)
	}
}

// Publish delivers payload to every connection currently registered in the
// room, including the author. Per-room delivery preserves the publish order
// of any single publisher; write failures on individual connections are
// ignored, their read loops will notice the dead socket.
func (r *Registry) Publish(matchID string, payload []byte) int {
	r.mu.RLock()
	room := r.rooms[matchID]
	conns := make([]*Connection, 0, len(room))
	for conn := range room {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.WriteText(payload)
	}
	return len(conns)
}

// CloseRoom forcibly closes every connection joined to the room with the
// room-closed status and drops the membership set. New joins fail afterwards
// because the backing match no longer exists. Implements the lifecycle
// manager's RoomCloser.
func (r *Registry) CloseRoom(matchID string) {
	r.mu.Lock()
	room, ok := r.rooms[matchID]
	if ok {
		delete(r.rooms, matchID)
		metrics.RoomsActive.Dec()
		for conn := range room {
			delete(r.members, conn)
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	// Eviction completes the close handshake per connection off the caller's
	// goroutine; the lifecycle manager must not stall on slow peers.
	for conn := range room {
		go conn.CloseWithStatus(CloseRoomClosed, "room closed")
	}
	r.logger.Info("room closed", "match_id", matchID, "evicted", len(room))
}

// CloseAll tears down every room, used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]map[*Connection]struct{})
	r.members = make(map[*Connection]string)
	r.mu.Unlock()

	// Shutdown waits for the close handshakes; every peer should observe the
	// status code before the process exits.
	var wg sync.WaitGroup
	for matchID, room := range rooms {
		metrics.RoomsActive.Dec()
		for conn := range room {
			wg.Add(1)
			go func(c *Connection) {
				defer wg.Done()
				c.CloseWithStatus(CloseRoomClosed, "server shutting down")
			}(conn)
		}
		r.logger.Debug("room closed on shutdown", "match_id", matchID)
	}
	wg.Wait()
}

// RoomSize returns the number of connections currently joined to the room.
func (r *Registry) RoomSize(matchID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[matchID])
}
