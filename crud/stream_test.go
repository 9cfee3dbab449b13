package crud

import (
	"context"
	stdErrors "errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceStream(t *testing.T) {
	ctx := context.Background()
	s := FromSlice([]int{1, 2, 3})
	var got []int
	for s.Next(ctx) {
		got = append(got, s.Value())
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.NoError(t, s.Err())
	assert.False(t, s.Next(ctx))
	assert.Zero(t, s.Value())
}

func TestSliceStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := FromSlice([]int{1, 2})
	require.True(t, s.Next(ctx))
	cancel()
	assert.False(t, s.Next(ctx))
	assert.ErrorIs(t, s.Err(), context.Canceled)
}

func TestMapStream_StopsOnError(t *testing.T) {
	boom := stdErrors.New("boom")
	s := MapStream(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (string, error) {
		if n == 2 {
			return "", boom
		}
		return strconv.Itoa(n), nil
	})
	got, err := Collect(context.Background(), s)
	assert.Equal(t, []string{"1"}, got)
	assert.ErrorIs(t, err, boom)
}

func TestCompletionStream(t *testing.T) {
	ctx := context.Background()

	t.Run("fires once on exhaustion", func(t *testing.T) {
		fired := 0
		s := &completionStream[int]{Stream: FromSlice([]int{1, 2}), onComplete: func(context.Context) error {
			fired++
			return nil
		}}
		got, err := Collect(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, got)
		assert.Equal(t, 1, fired)
		assert.False(t, s.Next(ctx))
		assert.Equal(t, 1, fired)
	})

	t.Run("close before exhaustion", func(t *testing.T) {
		fired := 0
		s := &completionStream[int]{Stream: FromSlice([]int{1, 2}), onComplete: func(context.Context) error {
			fired++
			return nil
		}}
		require.True(t, s.Next(ctx))
		require.NoError(t, s.Close())
		assert.False(t, s.Next(ctx))
		assert.Zero(t, fired)
	})

	t.Run("source error skips callback", func(t *testing.T) {
		fired := 0
		src := MapStream(FromSlice([]int{1}), func(context.Context, int) (int, error) {
			return 0, stdErrors.New("convert")
		})
		s := &completionStream[int]{Stream: src, onComplete: func(context.Context) error {
			fired++
			return nil
		}}
		_, err := Collect(ctx, s)
		assert.Error(t, err)
		assert.Zero(t, fired)
	})

	t.Run("callback error surfaces in Err", func(t *testing.T) {
		late := stdErrors.New("late")
		s := &completionStream[int]{Stream: FromSlice([]int{}), onComplete: func(context.Context) error {
			return late
		}}
		assert.False(t, s.Next(ctx))
		assert.ErrorIs(t, s.Err(), late)
	})
}
