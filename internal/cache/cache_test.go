package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestCacheGetSet(t *testing.T) {
	c := New[[]string](10, time.Minute, clock.NewMock())

	c.Set("collections", []string{"a", "b"})
	got, ok := c.Get("collections")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheExpiration(t *testing.T) {
	mock := clock.NewMock()
	c := New[int](10, 30*time.Second, mock)

	c.Set("k", 1)
	mock.Add(29 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	mock.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size(), "expired entries are removed on read")
}

func TestCacheZeroTTLDisablesCaching(t *testing.T) {
	c := New[int](10, 0, nil)
	c.Set("k", 1)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCacheDelete(t *testing.T) {
	c := New[int](10, time.Minute, nil)
	c.Set("list:50", 1)
	c.Set("list:100", 2)
	c.Set("other", 3)

	c.Delete("other")
	assert.Equal(t, 2, c.Size())

	assert.Equal(t, 2, c.DeleteByPrefix("list:"))
	assert.Equal(t, 0, c.Size())

	c.Set("x", 1)
	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCacheEviction(t *testing.T) {
	mock := clock.NewMock()
	c := New[int](3, time.Minute, mock)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		mock.Add(time.Second)
	}
	c.Set("k3", 3)

	assert.Equal(t, 3, c.Size())
	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest entry is evicted first")
	_, ok = c.Get("k3")
	assert.True(t, ok)
}

func TestCacheEvictsExpiredBeforeOldest(t *testing.T) {
	mock := clock.NewMock()
	c := New[int](2, time.Minute, mock)

	c.Set("old", 1)
	mock.Add(2 * time.Minute)
	c.Set("fresh", 2)
	c.Set("newer", 3)

	_, ok := c.Get("fresh")
	assert.True(t, ok)
	_, ok = c.Get("newer")
	assert.True(t, ok)
}

func TestCacheStats(t *testing.T) {
	c := New[int](5, time.Minute, clock.NewMock())
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("a")

	s := c.Stats()
	assert.Equal(t, 2, s.Entries)
	assert.Equal(t, 2, s.TotalHits)
	assert.Equal(t, 5, s.MaxSize)
	assert.Equal(t, 0, s.Expired)
}

func TestCacheConcurrency(t *testing.T) {
	c := New[int](50, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n*100+j)%60)
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), 50)
}
