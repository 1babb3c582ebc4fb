package feed

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionSet_EvictsOldest(t *testing.T) {
	s := NewSubscriptionSet(3)

	for _, a := range []string{"a", "b", "c"} {
		added, evicted := s.Add(a)
		assert.True(t, added)
		assert.Empty(t, evicted)
	}

	added, evicted := s.Add("a")
	assert.False(t, added)
	assert.Empty(t, evicted)

	added, evicted = s.Add("d")
	assert.True(t, added)
	assert.Equal(t, "a", evicted)
	assert.Equal(t, []string{"b", "c", "d"}, s.Members())
	assert.False(t, s.Contains("a"))
}

func TestSubscriptionSet_Remove(t *testing.T) {
	s := NewSubscriptionSet(3)
	s.Add("a")
	s.Add("b")

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, []string{"b"}, s.Members())
	assert.Equal(t, 1, s.Len())
}

func TestSubscriptionSet_NeverExceedsCapacity(t *testing.T) {
	s := NewSubscriptionSet(10)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Add(fmt.Sprintf("%d-%d", g, i))
				assert.LessOrEqual(t, s.Len(), 10)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 10, s.Len())
}

func TestBackoff(t *testing.T) {
	b := NewBackoff(5*time.Second, 30*time.Second, 0)

	var got []time.Duration
	for i := 0; i < 8; i++ {
		got = append(got, b.Next())
	}
	assert.Equal(t, []time.Duration{
		5 * time.Second, 10 * time.Second, 15 * time.Second, 20 * time.Second,
		25 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second,
	}, got)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}

	b.Reset()
	assert.Equal(t, 0, b.Attempt())
	assert.Equal(t, 5*time.Second, b.Next())
}
