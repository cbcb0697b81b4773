// internal/room/resolve.go
package room

import (
	"github.com/google/uuid"

	"github.com/jason-s-yu/stranded/internal/errors"
	"github.com/jason-s-yu/stranded/internal/tiles"
	"github.com/jason-s-yu/stranded/internal/worldmap"
)

// Snapshot is the immutable view of a room the resolution pipeline works
// from while the room lock is released.
type Snapshot struct {
	Code              string
	Day               int
	Players           []Player
	Actions           map[uuid.UUID]string
	Map               *worldmap.Map
	Explored          tiles.Set
	Resources         Resources
	ResourceUses      map[string]int
	ResourceDepletion map[string]bool
	Threads           []StoryThread
	Inventory         []string
	Facts             []string
}

// PlayerOutcome is the validated effect of one day on one player.
type PlayerOutcome struct {
	HPChange      int
	Injured       bool
	Food          int
	Water         int
	Source        string
	TilesRevealed []tiles.Coord
	Items         []string
	Facts         []string
}

// Resolution is a complete, validated day delta.
type Resolution struct {
	Day           int
	Narration     string
	Outcomes      map[uuid.UUID]PlayerOutcome
	ThreadUpdates []ThreadUpdate
	Fallback      bool
}

// Applied summarises what ApplyResolution changed.
type Applied struct {
	Code      string
	Day       int
	Narration string
	Fallback  bool
	HPChanges map[uuid.UUID]int
	Revealed  []tiles.Coord
	Resources Resources
}

// BeginResolution marks the room busy and returns a snapshot of the current
// day. Only one resolution may be in flight per room. Acquires lock.
func (r *Room) BeginResolution() (*Snapshot, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.beginUnsafe()
}

// BeginResolutionIfReady is BeginResolution for automatic triggers: it only
// begins when every living player has submitted an action for the current
// day, so a stale trigger cannot resolve the following day. Acquires lock.
func (r *Room) BeginResolutionIfReady() (*Snapshot, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.playableUnsafe() == nil {
		if submitted, expected := r.actionCountsUnsafe(); expected == 0 || submitted < expected {
			return nil, errors.FailedPreconditionf("%d of %d actions submitted", submitted, expected)
		}
	}
	return r.beginUnsafe()
}

// beginUnsafe takes the snapshot and sets the busy flag. Assumes lock is held.
func (r *Room) beginUnsafe() (*Snapshot, error) {
	if err := r.playableUnsafe(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Code:              r.Code,
		Day:               r.CurrentDay,
		Actions:           make(map[uuid.UUID]string),
		Map:               r.Map,
		Explored:          r.Explored.Clone(),
		Resources:         r.Resources,
		ResourceUses:      make(map[string]int, len(r.ResourceUses)),
		ResourceDepletion: r.depletionUnsafe(),
		Inventory:         append([]string(nil), r.Inventory...),
		Facts:             append([]string(nil), r.Facts...),
	}
	// Only survivors act; a missing submission reads as no action.
	for _, p := range r.Players {
		if !p.Alive() {
			continue
		}
		snap.Players = append(snap.Players, *p)
		action, ok := r.pendingActions[p.ID]
		if !ok {
			action = NoAction
		}
		snap.Actions[p.ID] = action
	}
	if len(snap.Players) == 0 {
		return nil, errors.FailedPrecondition("no surviving players to resolve")
	}
	for k, v := range r.ResourceUses {
		snap.ResourceUses[k] = v
	}
	for _, t := range r.Threads {
		snap.Threads = append(snap.Threads, StoryThread{
			ID:     t.ID,
			Title:  t.Title,
			Status: t.Status,
			Beats:  t.RecentBeats(PromptBeats),
		})
	}

	r.resolving = true
	r.broadcastUnsafe(Event{Type: EventResolutionStarted, Payload: ResolutionStartedPayload{CurrentDay: r.CurrentDay}})
	return snap, nil
}

// AbortResolution clears the busy flag without applying anything, leaving
// the day and its submitted actions as they were. Acquires lock.
func (r *Room) AbortResolution() {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.resolving {
		r.logger.Warnf("Resolution of day %d aborted", r.CurrentDay)
	}
	r.resolving = false
}

// ApplyResolution applies a validated day delta, runs the day-pass cost and
// moves to the next day. Outcomes for players no longer in the room are
// discarded. Acquires lock.
func (r *Room) ApplyResolution(res Resolution) (*Applied, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if !r.resolving {
		return nil, errors.FailedPrecondition("no resolution in progress")
	}
	r.resolving = false
	if r.closed {
		return nil, errors.FailedPreconditionf("room %s closed during resolution", r.Code)
	}
	if res.Day != r.CurrentDay {
		return nil, errors.FailedPreconditionf("resolution for day %d does not match current day %d", res.Day, r.CurrentDay)
	}

	applied := &Applied{
		Code:      r.Code,
		Day:       r.CurrentDay,
		Narration: res.Narration,
		Fallback:  res.Fallback,
		HPChanges: make(map[uuid.UUID]int, len(res.Outcomes)),
	}
	before := r.Resources
	depletionChanged := false

	for id := range res.Outcomes {
		if r.playerUnsafe(id) == nil {
			r.logger.Warnf("Discarding outcome for departed player %s", id)
		}
	}

	// Roster order keeps the pool clamps deterministic.
	for _, p := range r.Players {
		out, ok := res.Outcomes[p.ID]
		if !ok || !p.Alive() {
			continue
		}
		id := p.ID

		p.Health = clamp(p.Health+out.HPChange, 0, MaxHealth)
		applied.HPChanges[id] = out.HPChange
		if out.Injured {
			p.Injured = true
			p.injuredOn = r.CurrentDay
		}

		for _, c := range out.TilesRevealed {
			if r.Explored.Has(c) || !(r.Map.Land.Has(c) || r.Map.Water.Has(c)) {
				continue
			}
			r.Explored.Add(c)
			applied.Revealed = append(applied.Revealed, c)
		}

		food, water := out.Food, out.Water
		if _, known := r.Map.Resources[out.Source]; known && (food > 0 || water > 0) {
			if r.ResourceDepletion[out.Source] {
				food, water = min(food, 0), min(water, 0)
			} else {
				r.ResourceUses[out.Source]--
				if r.ResourceUses[out.Source] <= 0 {
					r.ResourceUses[out.Source] = 0
					r.ResourceDepletion[out.Source] = true
					depletionChanged = true
				}
			}
		}
		r.Resources.Food = max(r.Resources.Food+food, 0)
		r.Resources.Water = max(r.Resources.Water+water, 0)

		r.Inventory = appendUnique(r.Inventory, out.Items...)
		r.Facts = appendUnique(r.Facts, out.Facts...)
	}

	r.applyThreadUpdatesUnsafe(res.ThreadUpdates)
	r.applyDayPassCostUnsafe()
	r.endDayUnsafe(res.Narration)
	applied.Resources = r.Resources

	r.logger.Infof("Day %d resolved (fallback=%t), now day %d", applied.Day, res.Fallback, r.CurrentDay)
	r.broadcastUnsafe(r.dayAdvancedUnsafe(res.Fallback))
	if r.Resources != before || depletionChanged {
		r.broadcastUnsafe(Event{Type: EventResourceUpdated, Payload: ResourcePayload{
			Resources:         r.Resources,
			ResourceDepletion: r.depletionUnsafe(),
		}})
	}
	if len(applied.Revealed) > 0 {
		r.broadcastUnsafe(Event{Type: EventMapUpdated, Payload: MapPayload{
			Map:               r.mapSnapshotUnsafe(),
			ResourceDepletion: r.depletionUnsafe(),
		}})
	}
	return applied, nil
}

// applyDayPassCostUnsafe consumes daily rations for every living player.
// Each ration kind the pool cannot cover costs every living player health.
func (r *Room) applyDayPassCostUnsafe() {
	alive := 0
	for _, p := range r.Players {
		if p.Alive() {
			alive++
		}
	}
	if alive == 0 {
		return
	}

	shortages := 0
	needFood := r.Rules.FoodPerPlayer * alive
	if r.Resources.Food < needFood {
		shortages++
	}
	r.Resources.Food = max(r.Resources.Food-needFood, 0)

	needWater := r.Rules.WaterPerPlayer * alive
	if r.Resources.Water < needWater {
		shortages++
	}
	r.Resources.Water = max(r.Resources.Water-needWater, 0)

	if shortages == 0 {
		return
	}
	for _, p := range r.Players {
		if p.Alive() {
			p.Health = clamp(p.Health-shortages*r.Rules.ShortageDamage, 0, MaxHealth)
		}
	}
}

// appendUnique appends non-empty items not already in list.
func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if item == "" {
			continue
		}
		dup := false
		for _, existing := range list {
			if existing == item {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, item)
		}
	}
	return list
}
