package coalesce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupDeduplicatesConcurrentCalls(t *testing.T) {
	var g Group[int]
	var calls int32

	const waiters = 50
	var wg sync.WaitGroup
	results := make([]int, waiters)
	shared := make([]bool, waiters)

	start := make(chan struct{})
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			v, sh, err := g.Do("same-key", func() (int, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(50 * time.Millisecond)
				return 42, nil
			})
			require.NoError(t, err)
			results[i] = v
			shared[i] = sh
		}(i)
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for i := 0; i < waiters; i++ {
		require.Equal(t, 42, results[i])
	}
}

func TestGroupDisjointKeysRunIndependently(t *testing.T) {
	var g Group[string]
	var calls int32

	v1, _, err := g.Do("a", func() (string, error) {
		atomic.AddInt32(&calls, 1)
		return "a-result", nil
	})
	require.NoError(t, err)
	require.Equal(t, "a-result", v1)

	v2, _, err := g.Do("b", func() (string, error) {
		atomic.AddInt32(&calls, 1)
		return "b-result", nil
	})
	require.NoError(t, err)
	require.Equal(t, "b-result", v2)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestKeyDistinguishesFields(t *testing.T) {
	require.NotEqual(t, Key("a", "443", "", ""), Key("a", "444", "", ""))
	require.NotEqual(t, Key("a", "443", "1.2.3.4", ""), Key("a", "443", "", ""))
}
