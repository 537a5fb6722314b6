package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushDrain_FIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(i))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, q.DrainAll())
	assert.Nil(t, q.DrainAll())
}

func TestPush_AfterClose(t *testing.T) {
	q := New[string]()
	require.NoError(t, q.Push("kept"))
	q.Close()
	assert.ErrorIs(t, q.Push("dropped"), ErrClosed)
	// Items pushed before Close survive for a final drain.
	assert.Equal(t, []string{"kept"}, q.DrainAll())
}

func TestClose_Idempotent(t *testing.T) {
	q := New[int]()
	q.Close()
	q.Close()
	select {
	case <-q.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}

func TestPush_ConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 100

	q := New[int]()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Push(p*perProducer+i))
			}
		}(p)
	}
	wg.Wait()

	drained := q.DrainAll()
	require.Len(t, drained, producers*perProducer)

	// Per-producer order is preserved even though the interleaving across
	// producers is arbitrary.
	lastSeen := make(map[int]int)
	for _, v := range drained {
		p := v / perProducer
		if last, ok := lastSeen[p]; ok {
			assert.Greater(t, v, last)
		}
		lastSeen[p] = v
	}
}
