// internal/room/threads.go
package room

import (
	"fmt"
	"strings"
)

// ThreadStatus is the lifecycle stage of a story thread.
type ThreadStatus string

const (
	ThreadIntroduced  ThreadStatus = "introduced"
	ThreadEscalating  ThreadStatus = "escalating"
	ThreadComplicated ThreadStatus = "complicated"
	ThreadResolved    ThreadStatus = "resolved"
)

// UpdateType is the verb a generated thread update carries.
type UpdateType string

const (
	UpdateIntroduce  UpdateType = "introduce"
	UpdateEscalate   UpdateType = "escalate"
	UpdateComplicate UpdateType = "complicate"
	UpdateResolve    UpdateType = "resolve"
)

// NewThreadID is the sentinel id that asks for a fresh thread.
const NewThreadID = "NEW"

// PromptBeats is how many trailing beats are shown to the narrator.
const PromptBeats = 3

var statusByUpdate = map[UpdateType]ThreadStatus{
	UpdateIntroduce:  ThreadIntroduced,
	UpdateEscalate:   ThreadEscalating,
	UpdateComplicate: ThreadComplicated,
	UpdateResolve:    ThreadResolved,
}

// StatusFor maps an update verb to the status it produces.
func StatusFor(u UpdateType) (ThreadStatus, bool) {
	s, ok := statusByUpdate[UpdateType(strings.ToLower(string(u)))]
	return s, ok
}

// StoryThread is an append-only narrative arc.
type StoryThread struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	Status ThreadStatus `json:"status"`
	Beats  []string     `json:"beats"`
}

// RecentBeats returns up to the last n beats without copying older history.
func (t *StoryThread) RecentBeats(n int) []string {
	if len(t.Beats) <= n {
		return append([]string(nil), t.Beats...)
	}
	return append([]string(nil), t.Beats[len(t.Beats)-n:]...)
}

// ThreadUpdate is one generated change to the story threads.
type ThreadUpdate struct {
	ThreadID string     `json:"thread_id"`
	Type     UpdateType `json:"update_type"`
	Title    string     `json:"title,omitempty"`
	Beat     string     `json:"beat"`
}

// threadUnsafe finds a thread by id, or nil.
func (r *Room) threadUnsafe(id string) *StoryThread {
	for _, t := range r.Threads {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// applyThreadUpdatesUnsafe merges updates in order. Unknown ids and verbs are
// dropped with a warning. A resolved thread keeps its status but still
// records beats.
func (r *Room) applyThreadUpdatesUnsafe(updates []ThreadUpdate) {
	for _, u := range updates {
		status, ok := StatusFor(u.Type)
		if !ok {
			r.logger.Warnf("Dropping thread update with unknown type %q", u.Type)
			continue
		}
		beat := strings.TrimSpace(u.Beat)

		if strings.EqualFold(u.ThreadID, NewThreadID) {
			r.threadSeq++
			t := &StoryThread{
				ID:     fmt.Sprintf("t%d", r.threadSeq),
				Title:  strings.TrimSpace(u.Title),
				Status: status,
			}
			if t.Title == "" {
				t.Title = t.ID
			}
			if beat != "" {
				t.Beats = append(t.Beats, beat)
			}
			r.Threads = append(r.Threads, t)
			continue
		}

		t := r.threadUnsafe(u.ThreadID)
		if t == nil {
			r.logger.Warnf("Dropping update for unknown thread %q", u.ThreadID)
			continue
		}
		if beat != "" {
			t.Beats = append(t.Beats, beat)
		}
		if t.Status != ThreadResolved {
			t.Status = status
		}
	}
}

// ApplyThreadUpdates merges updates outside a resolution. Acquires lock.
func (r *Room) ApplyThreadUpdates(updates []ThreadUpdate) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.applyThreadUpdatesUnsafe(updates)
}

// Thread returns a copy of a thread by id. Acquires lock.
func (r *Room) Thread(id string) (StoryThread, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	t := r.threadUnsafe(id)
	if t == nil {
		return StoryThread{}, false
	}
	cp := *t
	cp.Beats = append([]string(nil), t.Beats...)
	return cp, true
}
