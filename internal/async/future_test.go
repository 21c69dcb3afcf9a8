package async

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvedAndRejected(t *testing.T) {
	v, err := Resolved(7).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	boom := errors.New("boom")
	_, err = Rejected[int](boom).Await(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPendingSettlesOnce(t *testing.T) {
	f, settle := Pending[string]()

	_, ok, _ := f.Peek()
	assert.False(t, ok)

	settle("first", nil)
	settle("second", errors.New("ignored"))

	v, ok, err := f.Peek()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestAwaitContextCancelDoesNotSettle(t *testing.T) {
	f, settle := Pending[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	settle(3, nil)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestGo(t *testing.T) {
	f := Go(context.Background(), func(context.Context) (string, error) {
		return "done", nil
	})
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestThen(t *testing.T) {
	f := Then(Resolved(21), func(v int) (string, error) {
		return strconv.Itoa(v * 2), nil
	})
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestThenPropagatesRejection(t *testing.T) {
	boom := errors.New("boom")
	called := false
	f := Then(Rejected[int](boom), func(v int) (int, error) {
		called = true
		return v, nil
	})
	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestRaceSettledEarly(t *testing.T) {
	out := Race(context.Background(), Resolved("page"), time.Second)
	assert.True(t, out.SettledEarly)

	v, err := out.Result.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "page", v)
}

func TestRaceTimeoutKeepsOriginalFuture(t *testing.T) {
	f, settle := Pending[string]()

	start := time.Now()
	out := Race(context.Background(), f, 20*time.Millisecond)
	assert.False(t, out.SettledEarly)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Same(t, f, out.Result)

	// The fetch keeps going after the race gave up.
	settle("late", nil)
	v, err := out.Result.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", v)
}

func TestRaceRejectionStillSettledEarly(t *testing.T) {
	boom := errors.New("boom")
	out := Race(context.Background(), Rejected[int](boom), time.Second)
	assert.True(t, out.SettledEarly)
	_, err := out.Result.Await(context.Background())
	assert.ErrorIs(t, err, boom)
}
