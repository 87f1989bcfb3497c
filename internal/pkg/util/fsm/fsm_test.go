package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
)

func TestIsNoop(t *testing.T) {
	assert.False(t, IsNoop(nil), "a completed transition is not a no-op")
	assert.True(t, IsNoop(fsm.NoTransitionError{}))
	assert.True(t, IsNoop(fsm.CanceledError{}))
	assert.True(t, IsNoop(fsm.InvalidEventError{Event: "x", State: "y"}))
	assert.False(t, IsNoop(errors.New("boom")))
}

func TestWrapEventCancels(t *testing.T) {
	boom := errors.New("boom")
	m := fsm.NewFSM("a",
		fsm.Events{{Name: "go", Src: []string{"a"}, Dst: "b"}},
		fsm.Callbacks{
			"before_go": WrapEvent(func(_ context.Context, e *fsm.Event) error {
				e.Cancel(boom)
				return nil
			}),
		},
	)

	err := m.Event(context.Background(), "go")
	assert.True(t, IsNoop(err))
	assert.Equal(t, "a", m.Current())
}
