// internal/resolution/validate.go
package resolution

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jason-s-yu/stranded/internal/errors"
	"github.com/jason-s-yu/stranded/internal/narrator"
	"github.com/jason-s-yu/stranded/internal/room"
	"github.com/jason-s-yu/stranded/internal/tiles"
)

// Numeric limits applied to every generated outcome.
const (
	MinHPChange      = -5
	MaxHPChange      = 3
	MinResourceDelta = -5
	MaxResourceDelta = 5
	MaxListItems     = 3
	MaxItemRunes     = 120
	MaxNarration     = 2000
	MaxBeatRunes     = 280
)

// FallbackNarration is shown when the day could not be generated.
const FallbackNarration = "The day passes quietly. Everyone keeps close to camp, " +
	"rationing what little there is and watching the horizon for sails."

// Validate turns a generated day into a room.Resolution. Every snapshot
// player must appear exactly once or the outcome is rejected as incomplete.
// Illegal tiles and unknown ids are dropped and numbers are clamped.
func Validate(snap *room.Snapshot, out narrator.DayOutcome) (room.Resolution, error) {
	active := make(map[uuid.UUID]bool, len(snap.Players))
	for _, p := range snap.Players {
		active[p.ID] = true
	}

	byPlayer := make(map[uuid.UUID]narrator.PlayerOutcome, len(snap.Players))
	for _, o := range out.Outcomes {
		id, err := uuid.Parse(strings.TrimSpace(o.PlayerID))
		if err != nil || !active[id] {
			continue
		}
		if _, dup := byPlayer[id]; dup {
			return room.Resolution{}, errors.InvalidArgumentf("player %s has more than one outcome", id)
		}
		byPlayer[id] = o
	}
	if len(byPlayer) != len(active) {
		missing := make([]string, 0)
		for _, p := range snap.Players {
			if _, ok := byPlayer[p.ID]; !ok {
				missing = append(missing, p.Name)
			}
		}
		return room.Resolution{}, errors.InvalidArgumentf("outcome is missing players: %s", strings.Join(missing, ", ")).
			WithMeta("missing", missing)
	}

	legal := tiles.AdjacentTiles(snap.Explored, snap.Map.Land, snap.Map.Water)
	visible := snap.Explored.Clone()
	reveals := make(map[uuid.UUID][]tiles.Coord, len(byPlayer))
	for id, o := range byPlayer {
		for _, raw := range o.TilesRevealed {
			c, err := tiles.ParseCoord(raw)
			if err != nil || !legal.Has(c) {
				continue
			}
			reveals[id] = append(reveals[id], c)
			visible.Add(c)
		}
	}

	uses := make(map[string]int, len(snap.ResourceUses))
	for k, v := range snap.ResourceUses {
		uses[k] = v
	}

	res := room.Resolution{
		Day:       snap.Day,
		Narration: truncate(strings.TrimSpace(out.Narration), MaxNarration),
		Outcomes:  make(map[uuid.UUID]room.PlayerOutcome, len(byPlayer)),
	}
	// Roster order decides who gets the last use of a site.
	for _, p := range snap.Players {
		o := byPlayer[p.ID]
		po := room.PlayerOutcome{
			HPChange:      clamp(o.HPChange, MinHPChange, MaxHPChange),
			Injured:       o.Injured,
			Food:          clamp(o.ResourcesFound.Food, MinResourceDelta, MaxResourceDelta),
			Water:         clamp(o.ResourcesFound.Water, MinResourceDelta, MaxResourceDelta),
			TilesRevealed: reveals[p.ID],
			Items:         cleanList(o.ItemsFound),
			Facts:         cleanList(o.FactsLearned),
		}

		source := strings.TrimSpace(o.ResourcesFound.Source)
		if site, known := snap.Map.Resources[source]; known && (po.Food > 0 || po.Water > 0) {
			if snap.ResourceDepletion[source] || uses[source] <= 0 || !visible.Has(site.At) {
				po.Food, po.Water = min(po.Food, 0), min(po.Water, 0)
			} else {
				uses[source]--
				po.Source = source
			}
		}
		res.Outcomes[p.ID] = po
	}

	for _, u := range out.ThreadUpdates {
		if strings.TrimSpace(u.Beat) == "" && !strings.EqualFold(u.ThreadID, room.NewThreadID) {
			continue
		}
		res.ThreadUpdates = append(res.ThreadUpdates, room.ThreadUpdate{
			ThreadID: strings.TrimSpace(u.ThreadID),
			Type:     room.UpdateType(strings.ToLower(strings.TrimSpace(u.UpdateType))),
			Title:    truncate(strings.TrimSpace(u.Title), MaxItemRunes),
			Beat:     truncate(strings.TrimSpace(u.Beat), MaxBeatRunes),
		})
	}
	return res, nil
}

// Fallback is the content-free day: neutral narration, no changes for anyone.
func Fallback(snap *room.Snapshot) room.Resolution {
	res := room.Resolution{
		Day:       snap.Day,
		Narration: FallbackNarration,
		Outcomes:  make(map[uuid.UUID]room.PlayerOutcome, len(snap.Players)),
		Fallback:  true,
	}
	for _, p := range snap.Players {
		res.Outcomes[p.ID] = room.PlayerOutcome{}
	}
	return res
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, truncate(s, MaxItemRunes))
		if len(out) == MaxListItems {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
