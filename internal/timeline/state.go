package timeline

import (
	"sort"
)

// StateTimeline is the ordered history of playing states, ordered by
// non-decreasing ActivationFrame. The timeline is never empty.
type StateTimeline struct {
	states []PlayingState
}

// NewStateTimeline creates a timeline holding a single state
func NewStateTimeline(initial PlayingState) *StateTimeline {
	t := &StateTimeline{}
	t.Reset(initial)
	return t
}

// Reset discards the history and starts over from initial
func (t *StateTimeline) Reset(initial PlayingState) {
	t.states = append(t.states[:0], initial)
}

// Len returns the number of retained states
func (t *StateTimeline) Len() int {
	return len(t.states)
}

// Last returns the most recently appended state
func (t *StateTimeline) Last() PlayingState {
	return t.states[len(t.states)-1]
}

// All returns a copy of the retained states
func (t *StateTimeline) All() []PlayingState {
	out := make([]PlayingState, len(t.states))
	copy(out, t.states)
	return out
}

func (t *StateTimeline) indexForFrame(frame int64) int {
	i := sort.Search(len(t.states), func(i int) bool {
		return t.states[i].ActivationFrame > frame
	})
	return max(i-1, 0)
}

// AtFrame returns the state active at performance frame. Frames before the
// first retained state resolve to the first state.
func (t *StateTimeline) AtFrame(frame int64) PlayingState {
	return t.states[t.indexForFrame(frame)]
}

// NextAfterFrame returns the activation frame of the first state starting
// after frame, if any
func (t *StateTimeline) NextAfterFrame(frame int64) (int64, bool) {
	i := t.indexForFrame(frame) + 1
	if i >= len(t.states) {
		return 0, false
	}
	return t.states[i].ActivationFrame, true
}

// DropPending removes the last state if it has not become active for any
// committed frame yet. The only remaining state is never removed.
func (t *StateTimeline) DropPending(committed int64) bool {
	if len(t.states) < 2 || t.Last().ActivationFrame < committed {
		return false
	}
	t.states = t.states[:len(t.states)-1]
	return true
}

// Push appends st. A last state activating on the same frame is replaced.
func (t *StateTimeline) Push(st PlayingState) {
	if t.Last().ActivationFrame == st.ActivationFrame {
		t.states[len(t.states)-1] = st
		return
	}
	t.states = append(t.states, st)
}

// Trim discards leading states that stopped being active at or before
// frame. The active state is always kept.
func (t *StateTimeline) Trim(frame int64) int {
	n := 0
	for n+1 < len(t.states) && t.states[n+1].ActivationFrame <= frame {
		n++
	}
	if n > 0 {
		t.states = append(t.states[:0], t.states[n:]...)
	}
	return n
}
