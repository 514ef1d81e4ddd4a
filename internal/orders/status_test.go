package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusInCart, StatusPending, true},
		{StatusInCart, StatusCompleted, true},
		{StatusInCart, StatusCancelled, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusInCart, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusInCart, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusInCart, StatusInCart, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusInCart.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestTransitionSources(t *testing.T) {
	assert.Equal(t, []Status{StatusInCart}, TransitionSources(StatusPending))
	assert.Equal(t, []Status{StatusInCart, StatusPending}, TransitionSources(StatusCompleted))
	assert.Equal(t, []Status{StatusInCart, StatusPending}, TransitionSources(StatusCancelled))
	assert.Empty(t, TransitionSources(StatusInCart))
}
