package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadRoundTrip(t *testing.T) {
	r := newTestRoom(t)
	r.ApplyThreadUpdates([]ThreadUpdate{{ThreadID: NewThreadID, Type: UpdateIntroduce, Title: "The knife", Beat: "found a knife"}})

	thread, ok := r.Thread("t1")
	require.True(t, ok)
	assert.Equal(t, ThreadIntroduced, thread.Status)
	assert.Equal(t, []string{"found a knife"}, thread.Beats)

	r.ApplyThreadUpdates([]ThreadUpdate{{ThreadID: "t1", Type: UpdateEscalate, Beat: "knife breaks"}})

	thread, ok = r.Thread("t1")
	require.True(t, ok)
	assert.Equal(t, ThreadEscalating, thread.Status)
	assert.Equal(t, []string{"found a knife", "knife breaks"}, thread.Beats)
}

func TestThreadSequenceAndUnknownIDs(t *testing.T) {
	r := newTestRoom(t)
	r.ApplyThreadUpdates([]ThreadUpdate{
		{ThreadID: "new", Type: UpdateIntroduce, Beat: "smoke on the horizon"},
		{ThreadID: NewThreadID, Type: UpdateIntroduce, Title: "Storm", Beat: "clouds build"},
		{ThreadID: "t9", Type: UpdateEscalate, Beat: "ghost"},
		{ThreadID: "t1", Type: "explode", Beat: "ignored"},
	})

	require.Len(t, r.Threads, 2)
	assert.Equal(t, "t1", r.Threads[0].ID)
	assert.Equal(t, "t1", r.Threads[0].Title)
	assert.Equal(t, "t2", r.Threads[1].ID)
	assert.Equal(t, []string{"smoke on the horizon"}, r.Threads[0].Beats)
}

func TestResolvedThreadKeepsStatus(t *testing.T) {
	r := newTestRoom(t)
	r.ApplyThreadUpdates([]ThreadUpdate{
		{ThreadID: NewThreadID, Type: UpdateIntroduce, Beat: "a raft"},
		{ThreadID: "t1", Type: UpdateResolve, Beat: "the raft floats"},
		{ThreadID: "t1", Type: UpdateComplicate, Beat: "a leak"},
	})
	thread, _ := r.Thread("t1")
	assert.Equal(t, ThreadResolved, thread.Status)
	assert.Equal(t, []string{"a raft", "the raft floats", "a leak"}, thread.Beats)
}

func TestRecentBeatsKeepsHistory(t *testing.T) {
	thread := &StoryThread{Beats: []string{"a", "b", "c", "d", "e"}}
	assert.Equal(t, []string{"c", "d", "e"}, thread.RecentBeats(PromptBeats))
	assert.Len(t, thread.Beats, 5)

	short := &StoryThread{Beats: []string{"a"}}
	assert.Equal(t, []string{"a"}, short.RecentBeats(PromptBeats))
}
