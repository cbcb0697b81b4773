// internal/resolution/pipeline.go
package resolution

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/stranded/internal/chronicle"
	"github.com/jason-s-yu/stranded/internal/errors"
	"github.com/jason-s-yu/stranded/internal/narrator"
	"github.com/jason-s-yu/stranded/internal/room"
	"github.com/jason-s-yu/stranded/internal/tiles"
)

const publishTimeout = 3 * time.Second

// Pipeline resolves days for rooms. One Pipeline serves every room; the
// per-room busy flag lives on the room itself.
type Pipeline struct {
	narrator  *narrator.Narrator
	policy    RetryPolicy
	publisher chronicle.Publisher
	logger    *logrus.Logger
}

func NewPipeline(n *narrator.Narrator, policy RetryPolicy, pub chronicle.Publisher, logger *logrus.Logger) *Pipeline {
	if pub == nil {
		pub = chronicle.NopPublisher{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{narrator: n, policy: policy, publisher: pub, logger: logger}
}

// ResolveDay runs one day for r: snapshot, generate, validate, apply. The day
// always advances once the resolution has begun; an error means it could not
// begin (not started, already resolving, nobody alive).
func (p *Pipeline) ResolveDay(ctx context.Context, r *room.Room) (*room.Applied, error) {
	return p.run(ctx, r, r.BeginResolution)
}

// ResolveIfReady is ResolveDay for automatic triggers. It does nothing
// unless every living player has submitted an action.
func (p *Pipeline) ResolveIfReady(ctx context.Context, r *room.Room) (*room.Applied, error) {
	return p.run(ctx, r, r.BeginResolutionIfReady)
}

// run owns the room's busy flag from begin until the day is applied. A panic
// anywhere in between aborts the resolution so the room is not stuck busy.
func (p *Pipeline) run(ctx context.Context, r *room.Room, begin func() (*room.Snapshot, error)) (applied *room.Applied, err error) {
	snap, err := begin()
	if err != nil {
		return nil, err
	}
	log := p.logger.WithFields(logrus.Fields{"room": snap.Code, "day": snap.Day})
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("Recovered from panic while resolving: %v", rec)
			r.AbortResolution()
			applied, err = nil, errors.Internalf("resolution of day %d aborted", snap.Day)
		}
	}()

	req := BuildRequest(snap)

	res, fellBack := CallWithRetry(ctx, p.policy, log,
		func(ctx context.Context) narrator.Result[room.Resolution] {
			out := p.narrator.ResolveDay(ctx, req)
			if !out.Ok() {
				return narrator.Result[room.Resolution]{Kind: out.Kind, Err: out.Err}
			}
			resolution, err := Validate(snap, out.Value)
			if err != nil {
				return narrator.Incomplete[room.Resolution](err)
			}
			return narrator.OK(resolution)
		},
		func() room.Resolution { return Fallback(snap) },
	)
	if fellBack {
		log.Warn("day resolved with fallback outcome")
	}

	applied, err = r.ApplyResolution(res)
	if err != nil {
		log.Errorf("failed to apply resolution: %v", err)
		return nil, err
	}
	p.publish(applied)
	return applied, nil
}

// Prologue generates the opening narration, falling back to the map intro.
func (p *Pipeline) Prologue(ctx context.Context, r *room.Room) string {
	req := narrator.PrologueRequest{
		MapName: r.Map.Name,
		Intro:   r.Map.Intro,
		Players: briefs(r.Roster(), nil),
	}
	log := p.logger.WithField("room", r.Code)
	text, _ := CallWithRetry(ctx, p.policy, log,
		func(ctx context.Context) narrator.Result[string] { return p.narrator.Prologue(ctx, req) },
		func() string { return r.Map.Intro },
	)
	return text
}

func (p *Pipeline) publish(a *room.Applied) {
	rec := chronicle.DayRecord{
		ID:        uuid.New(),
		RoomCode:  a.Code,
		Day:       a.Day,
		Narration: a.Narration,
		Fallback:  a.Fallback,
		HPChanges: make(map[string]int, len(a.HPChanges)),
		Revealed:  a.Revealed,
		Food:      a.Resources.Food,
		Water:     a.Resources.Water,
		Timestamp: time.Now().UnixMilli(),
	}
	for id, hp := range a.HPChanges {
		rec.HPChanges[id.String()] = hp
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.publisher.Publish(ctx, rec); err != nil {
			p.logger.WithField("room", a.Code).Warnf("failed to publish day %d: %v", a.Day, err)
		}
	}()
}

// BuildRequest assembles the narrator request for a snapshot.
func BuildRequest(snap *room.Snapshot) narrator.DayRequest {
	adjacent := tiles.AdjacentTiles(snap.Explored, snap.Map.Land, snap.Map.Water)
	req := narrator.DayRequest{
		Day:       snap.Day,
		MapName:   snap.Map.Name,
		Players:   briefs(snap.Players, snap.Actions),
		Food:      snap.Resources.Food,
		Water:     snap.Resources.Water,
		Explored:  coordStrings(snap.Explored),
		Adjacent:  coordStrings(adjacent),
		Inventory: snap.Inventory,
		Facts:     snap.Facts,
	}

	keys := make([]string, 0, len(snap.Map.Resources))
	for k := range snap.Map.Resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		site := snap.Map.Resources[k]
		if !snap.Explored.Has(site.At) && !adjacent.Has(site.At) {
			continue
		}
		req.Sites = append(req.Sites, narrator.SiteBrief{
			Key:      site.Key,
			Name:     site.Name,
			Kind:     string(site.Kind),
			At:       site.At.String(),
			UsesLeft: snap.ResourceUses[k],
			Depleted: snap.ResourceDepletion[k],
		})
	}
	for _, t := range snap.Threads {
		req.Threads = append(req.Threads, narrator.ThreadBrief{
			ID:     t.ID,
			Title:  t.Title,
			Status: string(t.Status),
			Beats:  t.Beats,
		})
	}
	return req
}

func briefs(players []room.Player, actions map[uuid.UUID]string) []narrator.PlayerBrief {
	out := make([]narrator.PlayerBrief, 0, len(players))
	for _, pl := range players {
		b := narrator.PlayerBrief{
			ID:           pl.ID.String(),
			Name:         pl.Name,
			Pronouns:     pl.Pronouns,
			MBTIType:     pl.MBTIType,
			Strength:     pl.Stats.Strength,
			Intelligence: pl.Stats.Intelligence,
			Charisma:     pl.Stats.Charisma,
			Health:       pl.Health,
			Injured:      pl.Injured,
		}
		if actions != nil {
			b.Action = actions[pl.ID]
		}
		out = append(out, b)
	}
	return out
}

func coordStrings(s tiles.Set) []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, c := range sorted {
		out[i] = c.String()
	}
	return out
}
