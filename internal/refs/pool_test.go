package refs

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAppendOnly(t *testing.T) {
	pool := NewPool()
	pool.Append("Account", "001A", "", "001B")
	pool.Append("Account", "001C")

	assert.Equal(t, []string{"001A", "001B", "001C"}, pool.Get("Account"))
	assert.Equal(t, 3, pool.Len("Account"))
	assert.Empty(t, pool.Get("Contact"))
	assert.Equal(t, map[string]int{"Account": 3}, pool.Counts())
}

func TestPoolGetDoesNotAlias(t *testing.T) {
	pool := NewPool()
	pool.Append("Account", "001A", "001B")

	view := pool.Get("Account")
	_ = append(view, "forged")
	pool.Append("Account", "001C")

	assert.Equal(t, []string{"001A", "001B", "001C"}, pool.Get("Account"))
	assert.Equal(t, []string{"001A", "001B"}, view)
}

func TestPickRoundRobin(t *testing.T) {
	pool := NewPool()
	pool.Append("Account", "a1", "a2", "a3")

	var picked []string
	for i := 0; i < 5; i++ {
		id, ok := Pick(pool, []string{"Account"}, i)
		require.True(t, ok)
		picked = append(picked, id)
	}
	assert.Equal(t, []string{"a1", "a2", "a3", "a1", "a2"}, picked)
}

func TestPickPolymorphicUsesFirstNonEmptyTarget(t *testing.T) {
	pool := NewPool()
	pool.Append("Contact", "c1")

	id, ok := Pick(pool, []string{"Lead", "Contact"}, 7)
	assert.True(t, ok)
	assert.Equal(t, "c1", id)

	_, ok = Pick(pool, []string{"Lead"}, 0)
	assert.False(t, ok)
}

func TestPoolConcurrentAccess(t *testing.T) {
	pool := NewPool()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				pool.Append("Account", fmt.Sprintf("%d-%d", w, i))
				_ = pool.Get("Account")
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 400, pool.Len("Account"))
}
