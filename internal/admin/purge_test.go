package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	got      time.Duration
	deadline bool
	n        int64
	err      error
}

func (f *fakePurger) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	f.got = retention
	_, f.deadline = ctx.Deadline()
	return f.n, f.err
}

func TestPurgeAudit(t *testing.T) {
	p := &fakePurger{n: 7}

	n, err := PurgeAudit(context.Background(), p, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, 48*time.Hour, p.got)
	assert.True(t, p.deadline, "purge runs under a timeout")
}

func TestPurgeAudit_Errors(t *testing.T) {
	t.Run("non-positive window", func(t *testing.T) {
		p := &fakePurger{}
		_, err := PurgeAudit(context.Background(), p, 0)
		require.Error(t, err)
		assert.Zero(t, p.got, "purger not called")
	})

	t.Run("purger failure is wrapped", func(t *testing.T) {
		cause := errors.New("connection refused")
		_, err := PurgeAudit(context.Background(), &fakePurger{err: cause}, time.Hour)
		require.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "purge audit log")
	})
}
