package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lefred/mysql-component-viruscan/internal/types"
)

func rec(name string) types.MatchRecord {
	return types.NewMatchRecord(time.Unix(1700000000, 0), name, "root", "localhost", "1.0.0", types.Int(10))
}

func names(c *Cursor) []string {
	var out []string
	for {
		r, _, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, r.SignatureName)
	}
}

func TestStore_Wraparound(t *testing.T) {
	s := New(10)
	for i := 1; i <= 12; i++ {
		s.Insert(rec(fmt.Sprintf("r%d", i)))
	}
	// slots 0 and 1 were overwritten by r11 and r12
	assert.Equal(t, []string{"r11", "r12", "r3", "r4", "r5", "r6", "r7", "r8", "r9", "r10"}, names(s.Open()))
	assert.Equal(t, 10, s.Occupied())
	assert.Equal(t, uint64(12), s.Inserted())
}

func TestStore_DefaultCapacity(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultCapacity, s.Capacity())
	assert.Equal(t, DefaultCapacity, s.RowCount())
	assert.Equal(t, 0, s.Occupied())
}

func TestStore_RowCountIsCapacity(t *testing.T) {
	s := New(8)
	s.Insert(rec("a"))
	assert.Equal(t, 8, s.RowCount())
	assert.Equal(t, 1, s.Occupied())
}

func TestCursor_EmptyStore(t *testing.T) {
	c := New(4).Open()
	_, _, ok := c.Next()
	assert.False(t, ok)
}

func TestCursor_SkipsHoles(t *testing.T) {
	s := New(6)
	s.Insert(rec("a"))
	s.Insert(rec("b"))
	s.mu.Lock()
	s.slots[4] = &types.MatchRecord{SignatureName: "e"}
	s.mu.Unlock()

	c := s.Open()
	var slots []int
	for {
		_, idx, ok := c.Next()
		if !ok {
			break
		}
		slots = append(slots, idx)
	}
	assert.Equal(t, []int{0, 1, 4}, slots)
}

func TestCursor_SeekDoesNotAdvance(t *testing.T) {
	s := New(4)
	s.Insert(rec("a"))
	s.Insert(rec("b"))

	c := s.Open()
	r, ok := c.Seek(1)
	require.True(t, ok)
	assert.Equal(t, "b", r.SignatureName)
	assert.Equal(t, 0, c.Position())

	_, ok = c.Seek(3)
	assert.False(t, ok)
	_, ok = c.Seek(-1)
	assert.False(t, ok)
	_, ok = c.Seek(99)
	assert.False(t, ok)
}

func TestCursor_Reset(t *testing.T) {
	s := New(4)
	s.Insert(rec("a"))
	c := s.Open()
	assert.Equal(t, []string{"a"}, names(c))
	c.Reset()
	assert.Equal(t, []string{"a"}, names(c))
}

func TestCursor_ReturnsCopies(t *testing.T) {
	s := New(2)
	s.Insert(rec("a"))
	r, _, ok := s.Open().Next()
	require.True(t, ok)
	r.SignatureName = "changed"
	again, _ := s.Get(0)
	assert.Equal(t, "a", again.SignatureName)
}

func TestCursor_IndependentCursors(t *testing.T) {
	s := New(4)
	s.Insert(rec("a"))
	s.Insert(rec("b"))
	c1, c2 := s.Open(), s.Open()
	r1, _, _ := c1.Next()
	r1b, _, _ := c1.Next()
	r2, _, _ := c2.Next()
	assert.Equal(t, "a", r1.SignatureName)
	assert.Equal(t, "b", r1b.SignatureName)
	assert.Equal(t, "a", r2.SignatureName)
}

func TestStore_ConcurrentInsert(t *testing.T) {
	s := New(16)
	const workers, per = 8, 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				s.Insert(rec(fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}
	// a reader running alongside the writers only ever sees whole records
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			for _, n := range names(s.Open()) {
				assert.NotEmpty(t, n)
			}
		}
	}()
	wg.Wait()
	<-done

	assert.Equal(t, uint64(workers*per), s.Inserted())
	assert.Len(t, names(s.Open()), 16)
}

func TestStore_Clear(t *testing.T) {
	s := New(3)
	s.Insert(rec("a"))
	s.Clear()
	assert.Equal(t, 0, s.Occupied())
	assert.Empty(t, names(s.Open()))
}
