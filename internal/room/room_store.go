// internal/room/room_store.go
package room

import (
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/stranded/internal/errors"
)

// CodeAlphabet excludes characters that are easy to misread (0/O, 1/I).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of characters in a room code.
const CodeLength = 4

// Factory builds the room for a code the store has not seen yet.
type Factory func(code string) *Room

// RoomStore is the process-wide registry of live rooms.
// The store lock is always taken before a room lock, so create-on-join and
// delete-on-empty are atomic per code.
type RoomStore struct {
	mu      sync.Mutex
	rooms   map[string]*Room // keyed by normalized code
	factory Factory
	logger  *logrus.Logger
}

// NewRoomStore initializes an empty store.
func NewRoomStore(factory Factory, logger *logrus.Logger) *RoomStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RoomStore{
		rooms:   make(map[string]*Room),
		factory: factory,
		logger:  logger,
	}
}

// NormalizeCode upper-cases a code and checks it against the alphabet.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return "", errors.InvalidArgumentf("room code must be %d characters", CodeLength)
	}
	for _, ch := range code {
		if !strings.ContainsRune(CodeAlphabet, ch) {
			return "", errors.InvalidArgumentf("room code %q contains invalid character %q", code, ch)
		}
	}
	return code, nil
}

// CreateOrGet returns the room for code, creating it on first use.
func (s *RoomStore) CreateOrGet(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createOrGetUnsafe(code)
}

// createOrGetUnsafe assumes the store lock is held.
func (s *RoomStore) createOrGetUnsafe(code string) (*Room, bool) {
	if r, ok := s.rooms[code]; ok {
		return r, false
	}
	r := s.factory(code)
	s.rooms[code] = r
	s.logger.WithField("room", code).Info("Room created")
	return r, true
}

// Get retrieves a room by code.
func (s *RoomStore) Get(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	return r, ok
}

// Join creates the room if needed and adds conn as a player in one step.
// A room created only for a rejected join is discarded again.
func (s *RoomStore) Join(code string, conn *Connection, params JoinParams) (*Room, *Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store lock, then room lock.
	r, created := s.createOrGetUnsafe(code)
	r.Mu.Lock()
	p, err := r.joinUnsafe(conn, params)
	empty := r.emptyUnsafe()
	r.Mu.Unlock()

	if err != nil {
		if created && empty {
			delete(s.rooms, code)
		}
		return nil, nil, err
	}
	return r, p, nil
}

// Subscribe creates the room if needed and attaches a screen connection.
func (s *RoomStore) Subscribe(code string, conn *Connection) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, _ := s.createOrGetUnsafe(code)
	r.Mu.Lock()
	r.subscribeUnsafe(conn)
	r.Mu.Unlock()
	return r
}

// RemovePlayer removes a connection from a room and deletes the room once it
// is abandoned: no players left in a started game, or nobody at all in a
// lobby. Screens still attached to a deleted room receive room-closed.
// Unknown rooms are logged and ignored.
func (s *RoomStore) RemovePlayer(code string, connID uuid.UUID) (deleted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		s.logger.Warnf("RemovePlayer: room %s not found", code)
		return false
	}
	r.Mu.Lock()
	abandoned := r.removeUnsafe(connID)
	if abandoned {
		// Close under the room lock so no join or broadcast can slip in
		// between removal and deletion.
		r.closeUnsafe("every player has left")
	}
	r.Mu.Unlock()

	if abandoned {
		delete(s.rooms, code)
		s.logger.WithField("room", code).Info("Room deleted")
	}
	return abandoned
}

// NewCode picks a random code that is not currently in use.
func (s *RoomStore) NewCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		b := make([]byte, CodeLength)
		for i := range b {
			b[i] = CodeAlphabet[rand.IntN(len(CodeAlphabet))]
		}
		if _, taken := s.rooms[string(b)]; !taken {
			return string(b)
		}
	}
}

// Summaries lists every live room ordered by code.
func (s *RoomStore) Summaries() []Summary {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of live rooms.
func (s *RoomStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
