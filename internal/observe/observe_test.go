package observe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	v := NewValue("a")
	updates, cancel := v.Subscribe()

	assert.Equal(t, "a", <-updates)

	v.Set("b")
	v.Set("c")
	assert.Equal(t, "c", <-updates, "only the latest value is kept")
	assert.Equal(t, "c", v.Get())

	cancel()
	cancel()
	_, ok := <-updates
	assert.False(t, ok)

	v.Set("d")
	assert.Equal(t, "d", v.Get())
}

func TestProjectionStates(t *testing.T) {
	p := NewProjection[string]("profile", Latest)
	assert.Equal(t, Idle, p.State.Get())

	ticket := p.Begin()
	assert.True(t, p.Loading.Get())
	assert.Equal(t, Loading, p.State.Get())

	require.True(t, ticket.Online("walker"))
	snap := p.Snapshot()
	assert.Equal(t, "walker", snap.Value)
	assert.False(t, snap.Loading)
	assert.False(t, snap.Offline)
	assert.Equal(t, Online, snap.State)

	require.True(t, p.Begin().Offline("cached"))
	snap = p.Snapshot()
	assert.Equal(t, "cached", snap.Value)
	assert.True(t, snap.Offline)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "offline", snap.State.String())

	require.True(t, p.Begin().Fail(errors.New("boom")))
	snap = p.Snapshot()
	assert.Equal(t, "cached", snap.Value)
	assert.Equal(t, "boom", snap.Error)
	assert.False(t, snap.Loading)
}

func TestProjectionOrdering(t *testing.T) {
	t.Run("latest drops stale results", func(t *testing.T) {
		p := NewProjection[string]("feed", Latest)
		first := p.Begin()
		second := p.Begin()

		assert.True(t, second.Online("second"))
		assert.True(t, p.Loading.Get(), "first load still outstanding")
		assert.False(t, first.Online("first"))

		assert.Equal(t, "second", p.Value.Get())
		assert.False(t, p.Loading.Get())
	})

	t.Run("last response wins", func(t *testing.T) {
		p := NewProjection[string]("feed", LastResponse)
		first := p.Begin()
		second := p.Begin()

		assert.True(t, second.Online("second"))
		assert.True(t, first.Online("first"))

		assert.Equal(t, "first", p.Value.Get())
	})

	t.Run("push supersedes loads", func(t *testing.T) {
		p := NewProjection[string]("feed", Latest)
		ticket := p.Begin()
		p.Push("live")

		assert.False(t, ticket.Online("one-shot"))
		assert.Equal(t, "live", p.Value.Get())
	})

	t.Run("a ticket finishes once", func(t *testing.T) {
		p := NewProjection[string]("feed", Latest)
		ticket := p.Begin()
		assert.True(t, ticket.Online("a"))
		assert.False(t, ticket.Online("b"))
		assert.Equal(t, "a", p.Value.Get())
	})
}
