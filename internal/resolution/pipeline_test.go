package resolution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jason-s-yu/stranded/internal/chronicle"
	"github.com/jason-s-yu/stranded/internal/errors"
	"github.com/jason-s-yu/stranded/internal/narrator"
	"github.com/jason-s-yu/stranded/internal/narrator/mock"
	"github.com/jason-s-yu/stranded/internal/room"
	"github.com/jason-s-yu/stranded/internal/worldmap"
)

type recordingPublisher struct {
	mu      sync.Mutex
	records []chronicle.DayRecord
}

func (p *recordingPublisher) Publish(_ context.Context, rec chronicle.DayRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return nil
}

func (p *recordingPublisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// startedStore returns a store holding one running, announced room ABCD with
// two players.
func startedStore(t *testing.T) (*room.RoomStore, *room.Room, []*room.Connection) {
	t.Helper()
	m, err := worldmap.Default()
	require.NoError(t, err)
	store := room.NewRoomStore(func(code string) *room.Room {
		return room.NewRoom(code, m, room.DefaultRules(), nil)
	}, nil)

	var r *room.Room
	var conns []*room.Connection
	for _, name := range []string{"Alice", "Bob"} {
		conn := room.NewConnection(false, nil, nil)
		conn.OutChan = make(chan room.Event, 256)
		r, _, err = store.Join("ABCD", conn, room.JoinParams{Name: name})
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	for _, c := range conns {
		_, err := r.ToggleReady(c.ID)
		require.NoError(t, err)
	}
	require.True(t, r.GameStarted)
	r.AnnounceStart("You wake on the sand.")
	return store, r, conns
}

// startedGame returns a running room with two players.
func startedGame(t *testing.T) (*room.Room, []*room.Connection) {
	t.Helper()
	_, r, conns := startedStore(t)
	return r, conns
}

func dayJSON(hp map[string]int, reveal string) string {
	var parts []string
	for id, change := range hp {
		parts = append(parts, fmt.Sprintf(`{"playerId": %q, "hpChange": %d, "tilesRevealed": [%q]}`, id, change, reveal))
	}
	return fmt.Sprintf(`{"narration": "Attempt three.", "outcomes": [%s], "threadUpdates": []}`, strings.Join(parts, ","))
}

func TestResolveDayRetriesThenApplies(t *testing.T) {
	r, conns := startedGame(t)
	alice, bob := conns[0].ID.String(), conns[1].ID.String()

	ctrl := gomock.NewController(t)
	c := mock.NewMockCompleter(ctrl)
	gomock.InOrder(
		c.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", fmt.Errorf("503")),
		c.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", fmt.Errorf("503")),
		c.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(dayJSON(map[string]int{alice: -2, bob: 1}, "4,3"), nil),
	)

	sleeper := &recordingSleep{}
	pub := &recordingPublisher{}
	p := NewPipeline(narrator.New(c, nil), testPolicy(sleeper), pub, nil)

	applied, err := p.ResolveDay(context.Background(), r)
	require.NoError(t, err)

	assert.False(t, applied.Fallback)
	assert.Equal(t, "Attempt three.", applied.Narration)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
	assert.Equal(t, 2, r.CurrentDay)

	a, _ := r.Player(conns[0].ID)
	b, _ := r.Player(conns[1].ID)
	assert.Equal(t, room.MaxHealth-2, a.Health)
	assert.Equal(t, room.MaxHealth, b.Health)
	assert.Len(t, applied.Revealed, 1)
	assert.False(t, r.Summary().Resolving)

	assert.Eventually(t, func() bool { return pub.Len() == 1 }, time.Second, 10*time.Millisecond)
	pub.mu.Lock()
	rec := pub.records[0]
	pub.mu.Unlock()
	assert.Equal(t, "ABCD", rec.RoomCode)
	assert.Equal(t, 1, rec.Day)
	assert.Equal(t, -2, rec.HPChanges[alice])
}

func TestResolveDayFallsBackWhenEveryAttemptFails(t *testing.T) {
	r, conns := startedGame(t)

	ctrl := gomock.NewController(t)
	c := mock.NewMockCompleter(ctrl)
	c.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", fmt.Errorf("503")).Times(3)

	sleeper := &recordingSleep{}
	p := NewPipeline(narrator.New(c, nil), testPolicy(sleeper), nil, nil)

	applied, err := p.ResolveDay(context.Background(), r)
	require.NoError(t, err)

	assert.True(t, applied.Fallback)
	assert.Equal(t, FallbackNarration, applied.Narration)
	assert.Len(t, sleeper.delays, 2)
	assert.Equal(t, 2, r.CurrentDay)
	for _, conn := range conns {
		assert.Equal(t, 0, applied.HPChanges[conn.ID])
		pl, _ := r.Player(conn.ID)
		assert.Equal(t, room.MaxHealth, pl.Health)
	}
	assert.Empty(t, applied.Revealed)
}

func TestResolveDayIncompleteOutcomeIsRetried(t *testing.T) {
	r, conns := startedGame(t)
	alice, bob := conns[0].ID.String(), conns[1].ID.String()

	ctrl := gomock.NewController(t)
	c := mock.NewMockCompleter(ctrl)
	gomock.InOrder(
		c.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(dayJSON(map[string]int{alice: -1}, "4,3"), nil),
		c.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(dayJSON(map[string]int{alice: -1, bob: -1}, "4,3"), nil),
	)

	sleeper := &recordingSleep{}
	p := NewPipeline(narrator.New(c, nil), testPolicy(sleeper), nil, nil)

	applied, err := p.ResolveDay(context.Background(), r)
	require.NoError(t, err)
	assert.False(t, applied.Fallback)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.delays)
	assert.Len(t, applied.HPChanges, 2)
}

func TestResolveDayDropsDepartedPlayer(t *testing.T) {
	store, r, conns := startedStore(t)
	alice, bob := conns[0].ID.String(), conns[1].ID.String()

	ctrl := gomock.NewController(t)
	c := mock.NewMockCompleter(ctrl)
	c.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) (string, error) {
		// Bob disconnects while the model is thinking.
		assert.False(t, store.RemovePlayer("ABCD", conns[1].ID))
		return dayJSON(map[string]int{alice: 1, bob: -3}, "4,3"), nil
	})

	p := NewPipeline(narrator.New(c, nil), testPolicy(&recordingSleep{}), nil, nil)
	applied, err := p.ResolveDay(context.Background(), r)
	require.NoError(t, err)

	assert.Len(t, applied.HPChanges, 1)
	assert.Contains(t, applied.HPChanges, conns[0].ID)
	assert.Len(t, r.Roster(), 1)
	assert.Equal(t, 2, r.CurrentDay)
}

func TestResolveDayPanicAbortsResolution(t *testing.T) {
	r, conns := startedGame(t)
	_, err := r.SubmitAction(conns[0].ID, "fish")
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	c := mock.NewMockCompleter(ctrl)
	c.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) (string, error) {
		panic("client exploded")
	})
	p := NewPipeline(narrator.New(c, nil), testPolicy(&recordingSleep{}), nil, nil)

	applied, err := p.ResolveDay(context.Background(), r)
	require.Error(t, err)
	assert.Nil(t, applied)
	assert.Equal(t, errors.CodeInternal, errors.CodeOf(err))
	assert.Equal(t, 1, r.CurrentDay)
	assert.False(t, r.Summary().Resolving)

	// The day can be resolved again with its actions intact.
	snap, err := r.BeginResolution()
	require.NoError(t, err)
	assert.Equal(t, "fish", snap.Actions[conns[0].ID])
}

func TestResolveDayRejectsConcurrentRun(t *testing.T) {
	r, _ := startedGame(t)
	_, err := r.BeginResolution()
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	c := mock.NewMockCompleter(ctrl)
	p := NewPipeline(narrator.New(c, nil), testPolicy(&recordingSleep{}), nil, nil)

	_, err = p.ResolveDay(context.Background(), r)
	assert.Error(t, err)
	assert.Equal(t, 1, r.CurrentDay)
}

func TestPrologueFallsBackToIntro(t *testing.T) {
	r, _ := startedGame(t)

	ctrl := gomock.NewController(t)
	c := mock.NewMockCompleter(ctrl)
	c.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", fmt.Errorf("503")).Times(3)

	p := NewPipeline(narrator.New(c, nil), testPolicy(&recordingSleep{}), nil, nil)
	assert.Equal(t, r.Map.Intro, p.Prologue(context.Background(), r))
}

func TestPrologueUsesGeneratedText(t *testing.T) {
	r, _ := startedGame(t)

	ctrl := gomock.NewController(t)
	c := mock.NewMockCompleter(ctrl)
	c.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "Alice")
		return "Alice and Bob wake on the sand.", nil
	})

	p := NewPipeline(narrator.New(c, nil), testPolicy(&recordingSleep{}), nil, nil)
	assert.Equal(t, "Alice and Bob wake on the sand.", p.Prologue(context.Background(), r))
}

func TestResolveIfReadyWaitsForActions(t *testing.T) {
	r, conns := startedGame(t)

	ctrl := gomock.NewController(t)
	c := mock.NewMockCompleter(ctrl)
	c.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", fmt.Errorf("503")).Times(3)
	p := NewPipeline(narrator.New(c, nil), testPolicy(&recordingSleep{}), nil, nil)

	_, err := r.SubmitAction(conns[0].ID, "fish")
	require.NoError(t, err)
	_, err = p.ResolveIfReady(context.Background(), r)
	assert.Error(t, err)
	assert.Equal(t, 1, r.CurrentDay)

	_, err = r.SubmitAction(conns[1].ID, "rest")
	require.NoError(t, err)
	applied, err := p.ResolveIfReady(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, applied.Fallback)
	assert.Equal(t, 2, r.CurrentDay)
}
