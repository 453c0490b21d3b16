package workers

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), Resolve(0))
	assert.Equal(t, runtime.NumCPU(), Resolve(-3))
	assert.Equal(t, 4, Resolve(4))
}

func TestForEachCoversEveryIndexOnce(t *testing.T) {
	for _, w := range []int{1, 3, 8, 64} {
		out := make([]int32, 37)
		err := ForEach(w, len(out), func(i int) error {
			atomic.AddInt32(&out[i], 1)
			return nil
		})
		require.NoError(t, err)
		for i, v := range out {
			assert.Equal(t, int32(1), v, "index %d with %d workers", i, w)
		}
	}
}

func TestForEachRangeEmpty(t *testing.T) {
	called := false
	err := ForEachRange(4, 0, func(lo, hi int) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestForEachPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(2, 10, func(i int) error {
		if i == 7 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}
