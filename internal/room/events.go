// internal/room/events.go
package room

import (
	"github.com/google/uuid"

	"github.com/jason-s-yu/stranded/internal/tiles"
	"github.com/jason-s-yu/stranded/internal/worldmap"
)

// EventType names a server -> client frame.
type EventType string

const (
	EventRoomUpdate        EventType = "room-update"
	EventAllPlayersReady   EventType = "all-players-ready"
	EventGameStart         EventType = "game-start"
	EventDayAdvanced       EventType = "day-advanced"
	EventResourceUpdated   EventType = "resource-updated"
	EventMapUpdated        EventType = "map-updated"
	EventJoined            EventType = "joined"
	EventActionSubmitted   EventType = "action-submitted"
	EventResolutionStarted EventType = "resolution-started"
	EventRoomClosed        EventType = "room-closed"
	EventError             EventType = "error"
)

// Event is the envelope every outbound frame uses.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// RoomUpdatePayload is the roster view sent on every join, leave and ready toggle.
type RoomUpdatePayload struct {
	RoomCode    string    `json:"roomCode"`
	Players     []Player  `json:"players"`
	GameStarted bool      `json:"gameStarted"`
	CurrentDay  int       `json:"currentDay"`
	Resources   Resources `json:"resources"`
}

// GameStartPayload carries the whole world. It is broadcast once when the
// opening narration is ready and sent privately to anyone who arrives later.
type GameStartPayload struct {
	Players           []Player        `json:"players"`
	Narration         string          `json:"narration"`
	Map               MapSnapshot     `json:"map"`
	ResourceDepletion map[string]bool `json:"resourceDepletion"`
	Resources         Resources       `json:"resources"`
	CurrentDay        int             `json:"currentDay"`
}

// DayAdvancedPayload follows every day boundary. Fallback is set when the
// narration is the neutral stand-in.
type DayAdvancedPayload struct {
	CurrentDay int       `json:"currentDay"`
	Players    []Player  `json:"players"`
	Resources  Resources `json:"resources"`
	Narration  string    `json:"narration"`
	Fallback   bool      `json:"fallback,omitempty"`
}

// ResourcePayload is sent when the pool or a site's depletion changed.
type ResourcePayload struct {
	Resources         Resources       `json:"resources"`
	ResourceDepletion map[string]bool `json:"resourceDepletion"`
}

// MapPayload is sent when tiles were revealed.
type MapPayload struct {
	Map               MapSnapshot     `json:"map"`
	ResourceDepletion map[string]bool `json:"resourceDepletion"`
}

// JoinedPayload confirms a join to the joining connection only.
type JoinedPayload struct {
	RoomCode string    `json:"roomCode"`
	PlayerID uuid.UUID `json:"playerId"`
	IsScreen bool      `json:"isScreen"`
}

// ActionSubmittedPayload reports progress toward the day's full action set.
type ActionSubmittedPayload struct {
	PlayerID  uuid.UUID `json:"playerId"`
	Submitted int       `json:"submitted"`
	Expected  int       `json:"expected"`
}

// ResolutionStartedPayload marks the room busy for the given day.
type ResolutionStartedPayload struct {
	CurrentDay int `json:"currentDay"`
}

// RoomClosedPayload tells the remaining screens why their room went away.
type RoomClosedPayload struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}

// ErrorPayload is sent to the caller whose request was rejected.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MapSnapshot is the client view of the island. Resource sites are listed
// once their tile has been explored.
type MapSnapshot struct {
	Name     string                  `json:"name"`
	Land     tiles.Set               `json:"landTiles"`
	Water    tiles.Set               `json:"waterTiles"`
	Start    tiles.Coord             `json:"startingTile"`
	Explored tiles.Set               `json:"exploredTiles"`
	Sites    []worldmap.ResourceSite `json:"resourceTiles"`
}
