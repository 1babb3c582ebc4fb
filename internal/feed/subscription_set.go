package feed

import "sync"

// SubscriptionSet is a bounded, insertion-ordered set of token addresses.
// Adding past capacity evicts the oldest member. Safe for concurrent use.
type SubscriptionSet struct {
	mu       sync.Mutex
	capacity int
	order    []string
	members  map[string]struct{}
}

// NewSubscriptionSet creates a set holding at most capacity addresses.
func NewSubscriptionSet(capacity int) *SubscriptionSet {
	if capacity < 1 {
		capacity = 1
	}
	return &SubscriptionSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		members:  make(map[string]struct{}, capacity),
	}
}

// Add inserts addr. It reports whether addr was newly added and, when the set
// was full, the address evicted to make room. Re-adding a member is a no-op
// and does not refresh its position.
func (s *SubscriptionSet) Add(addr string) (added bool, evicted string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[addr]; ok {
		return false, ""
	}
	if len(s.order) >= s.capacity {
		evicted = s.order[0]
		s.order = s.order[1:]
		delete(s.members, evicted)
	}
	s.order = append(s.order, addr)
	s.members[addr] = struct{}{}
	return true, evicted
}

// Remove deletes addr and reports whether it was present.
func (s *SubscriptionSet) Remove(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[addr]; !ok {
		return false
	}
	delete(s.members, addr)
	for i, a := range s.order {
		if a == addr {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports membership.
func (s *SubscriptionSet) Contains(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[addr]
	return ok
}

// Members returns the addresses oldest first.
func (s *SubscriptionSet) Members() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of members.
func (s *SubscriptionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
