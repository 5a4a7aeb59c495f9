package magiclink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome_Err(t *testing.T) {
	for _, err := range []error{ErrUnknownToken, ErrAlreadyUsed, ErrExpired, ErrOrphanedLink} {
		o := Outcome{Reason: reasonOf(err)}
		assert.Equal(t, err, o.Err())
	}
	assert.ErrorIs(t, Outcome{Reason: "something else"}.Err(), ErrInvalidToken)
	assert.NoError(t, Outcome{User: &User{ID: "u1"}}.Err())
}

func TestMemoryMemo(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := newMemoryMemo(func() time.Time { return now })

	_, ok, err := m.Get(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "t1", Outcome{User: &User{ID: "u1", Name: ptr("A")}}, time.Second))
	require.NoError(t, m.Put(ctx, "t2", Outcome{Reason: "expired"}, time.Second))

	o, ok, err := m.Get(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", o.User.ID)

	// Callers get their own copies.
	*o.User.Name = "changed"
	o, _, _ = m.Get(ctx, "t1")
	assert.Equal(t, "A", *o.User.Name)

	o, ok, _ = m.Get(ctx, "t2")
	require.True(t, ok)
	assert.Equal(t, ErrExpired, o.Err())

	now = now.Add(time.Second)
	_, ok, _ = m.Get(ctx, "t1")
	assert.False(t, ok)

	// Expired entries are pruned on Put.
	require.NoError(t, m.Put(ctx, "t3", Outcome{Reason: "expired"}, time.Second))
	assert.Len(t, m.entries, 1)
}
