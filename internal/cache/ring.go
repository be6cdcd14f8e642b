package cache

import (
	"sync"

	"github.com/lefred/mysql-component-viruscan/internal/types"
)

// DefaultCapacity is the number of match records kept in memory.
const DefaultCapacity = 1024

// Store is a fixed-capacity ring of match records. Once full, every insert
// overwrites the oldest slot. All methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	slots []*types.MatchRecord
	next  uint64
}

// New returns an empty store holding at most capacity records.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{slots: make([]*types.MatchRecord, capacity)}
}

// Insert stores rec in slot next mod capacity.
func (s *Store) Insert(rec types.MatchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.next % uint64(len(s.slots))
	s.slots[idx] = &rec
	s.next++
}

// Capacity returns the fixed number of slots.
func (s *Store) Capacity() int { return len(s.slots) }

// RowCount is what the store reports as its size to table readers. It is
// always the capacity, whether or not every slot is occupied.
func (s *Store) RowCount() int { return len(s.slots) }

// Occupied returns the number of slots currently holding a record.
func (s *Store) Occupied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= uint64(len(s.slots)) {
		return len(s.slots)
	}
	return int(s.next)
}

// Inserted returns the total number of inserts since creation or the last Clear.
func (s *Store) Inserted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Clear empties every slot.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.slots {
		s.slots[i] = nil
	}
	s.next = 0
}

// Get returns a copy of the record in slot i.
func (s *Store) Get(i int) (types.MatchRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.slots) || s.slots[i] == nil {
		return types.MatchRecord{}, false
	}
	return *s.slots[i], true
}

// nextFrom returns the first occupied slot at or after i.
func (s *Store) nextFrom(i int) (types.MatchRecord, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ; i >= 0 && i < len(s.slots); i++ {
		if rec := s.slots[i]; rec != nil {
			return *rec, i, true
		}
	}
	return types.MatchRecord{}, -1, false
}

// Open returns a cursor positioned at slot 0.
func (s *Store) Open() *Cursor { return &Cursor{store: s} }

// Cursor walks a Store by physical slot index. Each cursor keeps its own
// position and holds no lock between calls, so concurrent inserts may be
// observed mid-walk. A Cursor must not be shared between goroutines.
type Cursor struct {
	store *Store
	pos   int
}

// Next returns the next occupied record and its slot, skipping empty slots.
// It reports false once the end of the ring is reached.
func (c *Cursor) Next() (types.MatchRecord, int, bool) {
	rec, idx, ok := c.store.nextFrom(c.pos)
	if !ok {
		c.pos = len(c.store.slots)
		return types.MatchRecord{}, -1, false
	}
	c.pos = idx + 1
	return rec, idx, true
}

// Seek returns the record at slot i without moving the cursor.
func (c *Cursor) Seek(i int) (types.MatchRecord, bool) { return c.store.Get(i) }

// Position returns the slot the next call to Next starts from.
func (c *Cursor) Position() int { return c.pos }

// Reset moves the cursor back to slot 0.
func (c *Cursor) Reset() { c.pos = 0 }
