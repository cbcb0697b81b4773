package room

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/stranded/internal/errors"
)

func newTestStore(t *testing.T) *RoomStore {
	m := testMap(t)
	return NewRoomStore(func(code string) *Room {
		return NewRoom(code, m, DefaultRules(), nil)
	}, nil)
}

func TestCreateOrGetIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	a, created := s.CreateOrGet("ABCD")
	assert.True(t, created)
	b, created := s.CreateOrGet("ABCD")
	assert.False(t, created)
	assert.Same(t, a, b)

	_, ok := s.Get("WXYZ")
	assert.False(t, ok)
}

func TestRejectedJoinLeavesNoRoom(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Join("ABCD", NewConnection(false, nil, nil), JoinParams{Name: "Alice", Stats: &Stats{6, 6, 6}})
	require.Error(t, err)
	assert.Zero(t, s.Len())
}

func TestRemovePlayerDeletesEmptyRoom(t *testing.T) {
	s := newTestStore(t)
	alice := NewConnection(false, nil, nil)
	bob := NewConnection(false, nil, nil)
	_, _, err := s.Join("ABCD", alice, JoinParams{Name: "Alice"})
	require.NoError(t, err)
	_, _, err = s.Join("ABCD", bob, JoinParams{Name: "Bob"})
	require.NoError(t, err)

	assert.False(t, s.RemovePlayer("ABCD", alice.ID))
	r, ok := s.Get("ABCD")
	require.True(t, ok)
	assert.Len(t, r.Players, 1)

	assert.True(t, s.RemovePlayer("ABCD", bob.ID))
	_, ok = s.Get("ABCD")
	assert.False(t, ok)

	// Unknown rooms are a logged no-op.
	assert.False(t, s.RemovePlayer("ABCD", bob.ID))
}

func TestScreenKeepsRoomAlive(t *testing.T) {
	t.Run("lobby", func(t *testing.T) {
		s := newTestStore(t)
		screen := NewConnection(true, nil, nil)
		alice := NewConnection(false, nil, nil)
		s.Subscribe("ABCD", screen)
		_, _, err := s.Join("ABCD", alice, JoinParams{Name: "Alice"})
		require.NoError(t, err)

		assert.False(t, s.RemovePlayer("ABCD", alice.ID))
		assert.Equal(t, 1, s.Len())
		assert.True(t, s.RemovePlayer("ABCD", screen.ID))
		assert.Zero(t, s.Len())
	})

	t.Run("started game closes with its last player", func(t *testing.T) {
		s := newTestStore(t)
		screen := NewConnection(true, nil, nil)
		alice := NewConnection(false, nil, nil)
		r := s.Subscribe("ABCD", screen)
		_, _, err := s.Join("ABCD", alice, JoinParams{Name: "Alice"})
		require.NoError(t, err)
		_, err = r.ToggleReady(alice.ID)
		require.NoError(t, err)
		r.AnnounceStart("The tide goes out.")

		assert.True(t, s.RemovePlayer("ABCD", alice.ID))
		_, ok := s.Get("ABCD")
		assert.False(t, ok)
		assert.True(t, r.Closed())
		assert.Empty(t, r.Connections)

		evs := drain(screen)
		require.NotEmpty(t, evs)
		last := evs[len(evs)-1]
		assert.Equal(t, EventRoomClosed, last.Type)
		assert.Equal(t, "ABCD", last.Payload.(RoomClosedPayload).RoomCode)

		// The code now starts a fresh lobby.
		fresh, _, err := s.Join("ABCD", NewConnection(false, nil, nil), JoinParams{Name: "Bob"})
		require.NoError(t, err)
		assert.NotSame(t, r, fresh)
		assert.False(t, fresh.Summary().GameStarted)
		assert.Equal(t, 1, fresh.Summary().CurrentDay)
	})
}

func TestConcurrentJoinAndLeave(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := NewConnection(false, nil, nil)
			_, _, err := s.Join("ABCD", conn, JoinParams{Name: "P"})
			if assert.NoError(t, err) {
				s.RemovePlayer("ABCD", conn.ID)
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, s.Len())
}

func TestNormalizeCode(t *testing.T) {
	code, err := NormalizeCode(" abcd ")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", code)

	for _, bad := range []string{"", "ABC", "ABCDE", "AB0D", "ABID"} {
		_, err := NormalizeCode(bad)
		assert.Equal(t, errors.CodeInvalidArgument, errors.CodeOf(err), bad)
	}
}

func TestNewCodeUsesAlphabet(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 100; i++ {
		code := s.NewCode()
		require.Len(t, code, CodeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(CodeAlphabet, ch))
		}
	}
}

func TestSummaries(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Join("WXYZ", NewConnection(false, nil, nil), JoinParams{Name: "Wes"})
	require.NoError(t, err)
	_, _, err = s.Join("ABCD", NewConnection(false, nil, nil), JoinParams{Name: "Abe"})
	require.NoError(t, err)

	sums := s.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, "ABCD", sums[0].Code)
	assert.Equal(t, 1, sums[0].Players)
	assert.Equal(t, 1, sums[1].CurrentDay)
}
