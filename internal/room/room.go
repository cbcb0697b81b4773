// internal/room/room.go
package room

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/stranded/internal/errors"
	"github.com/jason-s-yu/stranded/internal/tiles"
	"github.com/jason-s-yu/stranded/internal/worldmap"
)

const (
	// StatBudget is the exact sum every player's stats must reach.
	StatBudget      = 6
	MaxHealth       = 10
	MaxNameLength   = 24
	MaxActionLength = 280

	// NoAction stands in for a player who did not submit anything this day.
	NoAction = "no action"
	// DayPassNarration is broadcast by the legacy AdvanceDay path.
	DayPassNarration = "Another day passes on the island."
)

var mbtiPattern = regexp.MustCompile(`^[EI][NS][TF][JP]$`)

// Stats are the three budgeted player attributes.
type Stats struct {
	Strength     int `json:"strength"`
	Intelligence int `json:"intelligence"`
	Charisma     int `json:"charisma"`
}

// Sum totals the three stats.
func (s Stats) Sum() int { return s.Strength + s.Intelligence + s.Charisma }

// DefaultStats is an even split of the budget, used when a join omits stats.
func DefaultStats() Stats { return Stats{Strength: 2, Intelligence: 2, Charisma: 2} }

// Player is a participant in a room. Its identity is the id of the connection
// that joined it.
type Player struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Pronouns string    `json:"pronouns,omitempty"`
	MBTIType string    `json:"mbtiType,omitempty"`
	Stats    Stats     `json:"stats"`
	Health   int       `json:"health"`
	Injured  bool      `json:"injured"`
	IsReady  bool      `json:"isReady"`
	JoinedAt time.Time `json:"joinedAt"`

	// injuredOn is the day the injury was last set.
	injuredOn int
}

// Alive reports whether the player can still act.
func (p Player) Alive() bool { return p.Health > 0 }

// Resources is the shared room pool.
type Resources struct {
	Food  int `json:"food"`
	Water int `json:"water"`
}

// Rules are the tunable numbers of the survival loop.
type Rules struct {
	StartingFood   int
	StartingWater  int
	FoodPerPlayer  int
	WaterPerPlayer int
	ShortageDamage int
	DayPassDamage  int
}

// DefaultRules returns the standard island economy.
func DefaultRules() Rules {
	return Rules{
		StartingFood:   6,
		StartingWater:  6,
		FoodPerPlayer:  1,
		WaterPerPlayer: 1,
		ShortageDamage: 1,
		DayPassDamage:  1,
	}
}

// JoinParams is the validated shape of a join-room request.
type JoinParams struct {
	Name     string
	Pronouns string
	MBTIType string
	Stats    *Stats
}

// Room is one isolated game session.
type Room struct {
	Code    string
	Players []*Player // join order
	// GameStarted is set once every player is ready. Play is only accepted
	// after the start has also been announced.
	GameStarted bool
	CurrentDay  int
	Resources   Resources // shared pool
	Rules       Rules
	CreatedAt   time.Time

	Map               *worldmap.Map
	Explored          tiles.Set
	ResourceUses      map[string]int  // remaining uses per site key
	ResourceDepletion map[string]bool // site key -> depleted

	Threads   []*StoryThread
	Inventory []string // shared, deduplicated
	Facts     []string // shared, deduplicated

	// Connections holds every subscriber: player phones and screens.
	Connections map[uuid.UUID]*Connection

	pendingActions map[uuid.UUID]string // actions for CurrentDay
	resolving      bool                 // a resolution is in flight
	announced      bool                 // game-start has been broadcast
	closed         bool                 // removed from the store for good
	lastNarration  string
	threadSeq      int

	logger *logrus.Entry

	// Mu guards every field above. Methods suffixed Unsafe assume it is held.
	Mu sync.Mutex
}

// NewRoom creates an empty lobby on the given map.
func NewRoom(code string, m *worldmap.Map, rules Rules, logger *logrus.Logger) *Room {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	uses := make(map[string]int, len(m.Resources))
	depletion := make(map[string]bool, len(m.Resources))
	for key, site := range m.Resources {
		uses[key] = site.Uses
		depletion[key] = false
	}
	return &Room{
		Code:              code,
		CurrentDay:        1,
		Rules:             rules,
		CreatedAt:         time.Now(),
		Map:               m,
		Explored:          tiles.NewSet(),
		ResourceUses:      uses,
		ResourceDepletion: depletion,
		Connections:       make(map[uuid.UUID]*Connection),
		pendingActions:    make(map[uuid.UUID]string),
		logger:            logger.WithField("room", code),
	}
}

// validateJoin trims the params and collects every problem into one
// validation error.
func validateJoin(p JoinParams) (JoinParams, error) {
	v := errors.NewValidationError()
	p.Name = strings.TrimSpace(p.Name)
	p.Pronouns = strings.TrimSpace(p.Pronouns)
	p.MBTIType = strings.ToUpper(strings.TrimSpace(p.MBTIType))

	if p.Name == "" {
		v.Add("playerName", "must not be empty")
	} else if utf8.RuneCountInString(p.Name) > MaxNameLength {
		v.Addf("playerName", "must be at most %d characters", MaxNameLength)
	}
	if p.MBTIType != "" && !mbtiPattern.MatchString(p.MBTIType) {
		v.Addf("mbtiType", "%q is not a four-letter type", p.MBTIType)
	}
	if p.Stats != nil {
		s := *p.Stats
		if s.Strength < 0 || s.Intelligence < 0 || s.Charisma < 0 {
			v.Add("stats", "must be non-negative")
		} else if s.Sum() != StatBudget {
			v.Addf("stats", "must sum to %d (got %d)", StatBudget, s.Sum())
		}
	}
	return p, v.ToError()
}

// Join validates params and adds conn as a new player. Acquires lock.
func (r *Room) Join(conn *Connection, params JoinParams) (*Player, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.joinUnsafe(conn, params)
}

// joinUnsafe adds a player for conn. Assumes lock is held.
func (r *Room) joinUnsafe(conn *Connection, params JoinParams) (*Player, error) {
	params, err := validateJoin(params)
	if err != nil {
		return nil, err
	}
	if r.playerUnsafe(conn.ID) != nil {
		return nil, errors.FailedPreconditionf("connection %s already joined room %s", conn.ID, r.Code)
	}

	stats := DefaultStats()
	if params.Stats != nil {
		stats = *params.Stats
	}
	p := &Player{
		ID:       conn.ID,
		Name:     params.Name,
		Pronouns: params.Pronouns,
		MBTIType: params.MBTIType,
		Stats:    stats,
		Health:   MaxHealth,
		JoinedAt: time.Now(),
	}
	r.Players = append(r.Players, p)
	r.Connections[conn.ID] = conn
	r.logger.Infof("Player %s (%s) joined", p.Name, p.ID)

	// Confirm to the joiner, then tell everyone about the new roster.
	conn.Write(Event{Type: EventJoined, Payload: JoinedPayload{RoomCode: r.Code, PlayerID: p.ID}})
	r.broadcastUnsafe(r.roomUpdateUnsafe())
	if r.announced {
		// Late joiners get the current world directly. Joiners that arrive
		// while the opening is still generating get the broadcast instead.
		conn.Write(Event{Type: EventGameStart, Payload: r.gameStartPayloadUnsafe()})
	}
	return p, nil
}

// Subscribe attaches a broadcast-only screen connection. Acquires lock.
func (r *Room) Subscribe(conn *Connection) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.subscribeUnsafe(conn)
}

// subscribeUnsafe attaches a screen. Assumes lock is held.
func (r *Room) subscribeUnsafe(conn *Connection) {
	r.Connections[conn.ID] = conn
	r.logger.Infof("Screen %s subscribed", conn.ID)
	conn.Write(Event{Type: EventJoined, Payload: JoinedPayload{RoomCode: r.Code, PlayerID: conn.ID, IsScreen: true}})
	conn.Write(r.roomUpdateUnsafe())
	if r.announced {
		conn.Write(Event{Type: EventGameStart, Payload: r.gameStartPayloadUnsafe()})
	}
}

// removeUnsafe drops the connection and its player, if any. It returns true
// when the room is abandoned and should be closed. Assumes lock is held.
func (r *Room) removeUnsafe(id uuid.UUID) bool {
	_, subscribed := r.Connections[id]
	delete(r.Connections, id)
	delete(r.pendingActions, id)

	removed := false
	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			removed = true
			r.logger.Infof("Player %s (%s) left", p.Name, id)
			break
		}
	}
	if !removed && !subscribed {
		r.logger.Warnf("Leave for unknown connection %s", id)
	}
	if r.abandonedUnsafe() {
		return true
	}
	if removed {
		r.broadcastUnsafe(r.roomUpdateUnsafe())
	}
	return false
}

// emptyUnsafe reports whether nobody at all is attached.
func (r *Room) emptyUnsafe() bool {
	return len(r.Players) == 0 && len(r.Connections) == 0
}

// abandonedUnsafe reports whether the room should be deleted. A lobby may be
// held open by screens alone; a started game ends with its last player.
func (r *Room) abandonedUnsafe() bool {
	if len(r.Players) > 0 {
		return false
	}
	return r.GameStarted || len(r.Connections) == 0
}

// closeUnsafe marks the room closed and tells any remaining screens why.
// Their sockets are closed by the gateway once the event is written.
func (r *Room) closeUnsafe(reason string) {
	r.closed = true
	r.broadcastUnsafe(Event{Type: EventRoomClosed, Payload: RoomClosedPayload{RoomCode: r.Code, Reason: reason}})
	r.Connections = make(map[uuid.UUID]*Connection)
	r.pendingActions = make(map[uuid.UUID]string)
	r.logger.Infof("Room closed: %s", reason)
}

// Closed reports whether the room has been removed from its store.
// Acquires lock.
func (r *Room) Closed() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.closed
}

// ToggleReady flips the ready flag of a player. When every player is ready
// the room becomes Active and all-players-ready is broadcast; started reports
// that transition so the caller can announce game-start. Acquires lock.
func (r *Room) ToggleReady(id uuid.UUID) (started bool, err error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.playerUnsafe(id)
	if p == nil {
		r.logger.Warnf("ToggleReady for unknown player %s", id)
		return false, errors.NotFoundf("player %s not in room %s", id, r.Code)
	}
	if r.GameStarted {
		return false, errors.FailedPrecondition("game already started")
	}
	p.IsReady = !p.IsReady
	r.broadcastUnsafe(r.roomUpdateUnsafe())

	if !r.allReadyUnsafe() {
		return false, nil
	}
	// all-players-ready always goes out before game-start.
	r.broadcastUnsafe(Event{Type: EventAllPlayersReady})
	r.startUnsafe()
	return true, nil
}

// allReadyUnsafe reports whether a non-empty lobby is fully ready.
func (r *Room) allReadyUnsafe() bool {
	if len(r.Players) == 0 || r.GameStarted {
		return false
	}
	for _, p := range r.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// startUnsafe moves the room to Active and seeds the world. Play stays
// blocked until AnnounceStart.
func (r *Room) startUnsafe() {
	r.GameStarted = true
	r.Resources = Resources{Food: r.Rules.StartingFood, Water: r.Rules.StartingWater}
	r.Explored.Add(r.Map.Start)
	r.logger.Infof("Game started with %d players", len(r.Players))
}

// AnnounceStart broadcasts game-start with the opening narration and opens
// the room for play. It does nothing before the start or after the first
// announcement. Acquires lock.
func (r *Room) AnnounceStart(narration string) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if !r.GameStarted || r.announced || r.closed {
		r.logger.Warnf("AnnounceStart ignored (started=%t announced=%t closed=%t)", r.GameStarted, r.announced, r.closed)
		return
	}
	r.lastNarration = narration
	r.announced = true
	r.broadcastUnsafe(Event{Type: EventGameStart, Payload: r.gameStartPayloadUnsafe()})
}

// playableUnsafe rejects play until the game has started and game-start has
// gone out, and while a resolution is in flight.
func (r *Room) playableUnsafe() error {
	if !r.GameStarted {
		return errors.FailedPrecondition("game has not started")
	}
	if !r.announced {
		return errors.FailedPrecondition("game is still starting")
	}
	if r.resolving {
		return errors.FailedPrecondition("a resolution is in progress")
	}
	return nil
}

// AdvanceDay is the legacy day transition: a flat health cost and a new day.
// Acquires lock.
func (r *Room) AdvanceDay() error {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if err := r.playableUnsafe(); err != nil {
		return err
	}
	// Every survivor pays the flat cost; nobody eats from the pool.
	for _, p := range r.Players {
		if p.Alive() {
			p.Health = clamp(p.Health-r.Rules.DayPassDamage, 0, MaxHealth)
		}
	}
	r.endDayUnsafe(DayPassNarration)
	r.broadcastUnsafe(r.dayAdvancedUnsafe(false))
	return nil
}

// SubmitAction records a player's action for the current day. allIn reports
// whether every living player has now submitted. Acquires lock.
func (r *Room) SubmitAction(id uuid.UUID, action string) (allIn bool, err error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if err := r.playableUnsafe(); err != nil {
		return false, err
	}
	p := r.playerUnsafe(id)
	if p == nil {
		r.logger.Warnf("SubmitAction for unknown player %s", id)
		return false, errors.NotFoundf("player %s not in room %s", id, r.Code)
	}
	if !p.Alive() {
		return false, errors.FailedPrecondition("dead players cannot act")
	}

	r.pendingActions[id] = normalizeAction(action)
	submitted, expected := r.actionCountsUnsafe()
	r.broadcastUnsafe(Event{Type: EventActionSubmitted, Payload: ActionSubmittedPayload{
		PlayerID:  id,
		Submitted: submitted,
		Expected:  expected,
	}})
	return expected > 0 && submitted == expected, nil
}

// actionCountsUnsafe counts living players and how many of them have acted.
func (r *Room) actionCountsUnsafe() (submitted, expected int) {
	for _, p := range r.Players {
		if !p.Alive() {
			continue
		}
		expected++
		if _, ok := r.pendingActions[p.ID]; ok {
			submitted++
		}
	}
	return submitted, expected
}

// normalizeAction trims and truncates free text; blank means no action.
func normalizeAction(action string) string {
	action = strings.TrimSpace(action)
	if action == "" {
		return NoAction
	}
	if utf8.RuneCountInString(action) > MaxActionLength {
		action = string([]rune(action)[:MaxActionLength])
	}
	return action
}

// endDayUnsafe closes out the current day: stale injuries clear, the counter
// moves on and pending actions reset.
func (r *Room) endDayUnsafe(narration string) {
	for _, p := range r.Players {
		if p.Injured && p.injuredOn < r.CurrentDay {
			p.Injured = false
		}
	}
	r.CurrentDay++
	r.pendingActions = make(map[uuid.UUID]string)
	r.lastNarration = narration
}

// playerUnsafe finds a player by connection id, or nil.
func (r *Room) playerUnsafe(id uuid.UUID) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Player returns a copy of the player with the given id. Acquires lock.
func (r *Room) Player(id uuid.UUID) (Player, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	p := r.playerUnsafe(id)
	if p == nil {
		return Player{}, false
	}
	return *p, true
}

// Roster returns a copy of the players in join order. Acquires lock.
func (r *Room) Roster() []Player {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.playersUnsafe()
}

// Summary is the debug listing row served by GET /rooms.
type Summary struct {
	Code        string `json:"code"`
	Players     int    `json:"players"`
	GameStarted bool   `json:"gameStarted"`
	CurrentDay  int    `json:"currentDay"`
	Resolving   bool   `json:"resolving"`
}

// Summary returns the debug listing row for this room. Acquires lock.
func (r *Room) Summary() Summary {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return Summary{
		Code:        r.Code,
		Players:     len(r.Players),
		GameStarted: r.GameStarted,
		CurrentDay:  r.CurrentDay,
		Resolving:   r.resolving,
	}
}

// broadcastUnsafe fans an event out to every subscriber. Writes never block.
func (r *Room) broadcastUnsafe(ev Event) {
	for _, conn := range r.Connections {
		conn.Write(ev)
	}
}

// playersUnsafe copies the roster so it can leave the lock.
func (r *Room) playersUnsafe() []Player {
	out := make([]Player, len(r.Players))
	for i, p := range r.Players {
		out[i] = *p
	}
	return out
}

// depletionUnsafe copies the depletion map for a payload.
func (r *Room) depletionUnsafe() map[string]bool {
	out := make(map[string]bool, len(r.ResourceDepletion))
	for k, v := range r.ResourceDepletion {
		out[k] = v
	}
	return out
}

// mapSnapshotUnsafe builds the client view of the island.
func (r *Room) mapSnapshotUnsafe() MapSnapshot {
	snap := MapSnapshot{
		Name:     r.Map.Name,
		Land:     r.Map.Land,
		Water:    r.Map.Water,
		Start:    r.Map.Start,
		Explored: r.Explored.Clone(),
		Sites:    []worldmap.ResourceSite{},
	}
	for _, c := range r.Explored.Sorted() {
		if site, ok := r.Map.SiteAt(c); ok {
			snap.Sites = append(snap.Sites, site)
		}
	}
	return snap
}

// roomUpdateUnsafe builds the room-update event.
func (r *Room) roomUpdateUnsafe() Event {
	return Event{Type: EventRoomUpdate, Payload: RoomUpdatePayload{
		RoomCode:    r.Code,
		Players:     r.playersUnsafe(),
		GameStarted: r.GameStarted,
		CurrentDay:  r.CurrentDay,
		Resources:   r.Resources,
	}}
}

// gameStartPayloadUnsafe builds the full world view sent with game-start.
func (r *Room) gameStartPayloadUnsafe() GameStartPayload {
	return GameStartPayload{
		Players:           r.playersUnsafe(),
		Narration:         r.lastNarration,
		Map:               r.mapSnapshotUnsafe(),
		ResourceDepletion: r.depletionUnsafe(),
		Resources:         r.Resources,
		CurrentDay:        r.CurrentDay,
	}
}

// dayAdvancedUnsafe builds the day-advanced event for the day just begun.
func (r *Room) dayAdvancedUnsafe(fallback bool) Event {
	return Event{Type: EventDayAdvanced, Payload: DayAdvancedPayload{
		CurrentDay: r.CurrentDay,
		Players:    r.playersUnsafe(),
		Resources:  r.Resources,
		Narration:  r.lastNarration,
		Fallback:   fallback,
	}}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
