package web

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSessions(idle time.Duration, maxSessions int) (*Sessions, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewSessions(idle, maxSessions)
	m.now = clock.now
	return m, clock
}

func TestSessions_LookupTouches(t *testing.T) {
	m, clock := newTestSessions(10*time.Minute, 0)
	sess := m.Open()

	clock.advance(8 * time.Minute)
	got, ok := m.Lookup(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	// The lookup above reset the idle clock.
	clock.advance(8 * time.Minute)
	_, ok = m.Lookup(sess.ID)
	assert.True(t, ok)
}

func TestSessions_IdleExpiry(t *testing.T) {
	m, clock := newTestSessions(10*time.Minute, 0)
	sess := m.Open()

	clock.advance(11 * time.Minute)
	_, ok := m.Lookup(sess.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	_, ok = m.Lookup("unknown")
	assert.False(t, ok)
}

func TestSessions_EvictsLeastRecentlyUsed(t *testing.T) {
	m, clock := newTestSessions(time.Hour, 2)

	first := m.Open()
	clock.advance(time.Minute)
	second := m.Open()
	clock.advance(time.Minute)
	_, ok := m.Lookup(first.ID)
	require.True(t, ok)

	clock.advance(time.Minute)
	third := m.Open()

	assert.Equal(t, 2, m.Len())
	_, ok = m.Lookup(second.ID)
	assert.False(t, ok, "second was least recently used")
	_, ok = m.Lookup(first.ID)
	assert.True(t, ok)
	_, ok = m.Lookup(third.ID)
	assert.True(t, ok)
}

func TestSessions_Sweep(t *testing.T) {
	m, clock := newTestSessions(5*time.Minute, 0)
	m.Open()
	m.Open()
	clock.advance(3 * time.Minute)
	keep := m.Open()
	clock.advance(3 * time.Minute)

	assert.Equal(t, 2, m.Sweep())
	assert.Equal(t, 1, m.Len())
	_, ok := m.Lookup(keep.ID)
	assert.True(t, ok)
}

func TestSessions_SweeperStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := NewSessions(time.Nanosecond, 0)
	m.Open()

	ctx, cancel := context.WithCancel(context.Background())
	m.StartSweeper(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}
