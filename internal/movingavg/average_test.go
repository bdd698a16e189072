package movingavg

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := New(size)
		require.ErrorIs(t, err, ErrInvalidSize)
	}
}

func TestEmptyAverageIsZero(t *testing.T) {
	a, err := New(3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Current())
	assert.Empty(t, a.Values())
}

func TestPushEvictsOldest(t *testing.T) {
	a, err := New(3)
	require.NoError(t, err)

	assert.Equal(t, 10.0, a.Push(10))
	assert.Equal(t, 15.0, a.Push(20))
	assert.Equal(t, 20.0, a.Push(30))
	assert.Equal(t, 30.0, a.Push(40)) // 20,30,40
	assert.Equal(t, []float64{20, 30, 40}, a.Values())
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 3, a.Size())

	a.Reset()
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0.0, a.Current())
}

func TestCurrentDoesNotMutate(t *testing.T) {
	a, _ := New(2)
	a.Push(4)
	a.Push(8)
	assert.Equal(t, 6.0, a.Current())
	assert.Equal(t, 6.0, a.Current())
	assert.Equal(t, []float64{4, 8}, a.Values())
}

func TestAverageMatchesMeanOfTail(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, size := range []int{1, 2, 5, 17} {
		a, err := New(size)
		require.NoError(t, err)

		var pushed []float64
		for i := 0; i < 200; i++ {
			s := rng.Float64() * 100
			pushed = append(pushed, s)
			got := a.Push(s)

			start := len(pushed) - size
			if start < 0 {
				start = 0
			}
			var sum float64
			for _, v := range pushed[start:] {
				sum += v
			}
			want := sum / float64(len(pushed)-start)
			require.InDelta(t, want, got, 1e-9, "size=%d i=%d", size, i)
			require.Equal(t, pushed[start:], a.Values())
		}
	}
}

func TestWindowSize(t *testing.T) {
	tests := []struct {
		cooldown, interval time.Duration
		want               int
	}{
		{30 * time.Second, 5 * time.Second, 6},
		{10 * time.Second, 3 * time.Second, 3},
		{11 * time.Second, 2 * time.Second, 6},
		{time.Second, 5 * time.Second, 1},
		{0, time.Second, 1},
		{time.Second, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WindowSize(tt.cooldown, tt.interval), "%v/%v", tt.cooldown, tt.interval)
	}
}
