// internal/narrator/types.go
package narrator

// PlayerBrief is what the model is told about one player.
type PlayerBrief struct {
	ID           string
	Name         string
	Pronouns     string
	MBTIType     string
	Strength     int
	Intelligence int
	Charisma     int
	Health       int
	Injured      bool
	Action       string
}

type ThreadBrief struct {
	ID     string
	Title  string
	Status string
	Beats  []string
}

type SiteBrief struct {
	Key      string
	Name     string
	Kind     string
	At       string
	UsesLeft int
	Depleted bool
}

// DayRequest is the full context for resolving one day.
type DayRequest struct {
	Day       int
	MapName   string
	Players   []PlayerBrief
	Food      int
	Water     int
	Explored  []string
	Adjacent  []string
	Sites     []SiteBrief
	Threads   []ThreadBrief
	Inventory []string
	Facts     []string
}

// DayOutcome is the structured response to a DayRequest.
type DayOutcome struct {
	Narration     string          `json:"narration"`
	Outcomes      []PlayerOutcome `json:"outcomes"`
	ThreadUpdates []ThreadUpdate  `json:"threadUpdates"`
}

type PlayerOutcome struct {
	PlayerID       string         `json:"playerId"`
	HPChange       int            `json:"hpChange"`
	Injured        bool           `json:"injured"`
	ResourcesFound ResourcesFound `json:"resourcesFound"`
	TilesRevealed  []string       `json:"tilesRevealed"`
	ItemsFound     []string       `json:"itemsFound"`
	FactsLearned   []string       `json:"factsLearned"`
}

type ResourcesFound struct {
	Food   int    `json:"food"`
	Water  int    `json:"water"`
	Source string `json:"source,omitempty"`
}

type ThreadUpdate struct {
	ThreadID   string `json:"thread_id"`
	UpdateType string `json:"update_type"`
	Title      string `json:"title,omitempty"`
	Beat       string `json:"beat"`
}

// PrologueRequest asks for the opening scene of a game.
type PrologueRequest struct {
	MapName string
	Intro   string
	Players []PlayerBrief
}

// JudgeRequest is a single-player console turn.
type JudgeRequest struct {
	Day    int
	Name   string
	Health int
	Food   int
	Water  int
	Action string
	Recent []string
}

// Judgement rates an action and pre-writes both branches.
type Judgement struct {
	Difficulty  string `json:"difficulty"`
	Success     string `json:"success"`
	Failure     string `json:"failure"`
	HPOnSuccess int    `json:"hpOnSuccess"`
	HPOnFailure int    `json:"hpOnFailure"`
	Food        int    `json:"food"`
	Water       int    `json:"water"`
}
