package storefront

import "sync"

// InFlightSet marks cart lines with a mutation currently running.
type InFlightSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewInFlightSet() *InFlightSet {
	return &InFlightSet{ids: map[string]struct{}{}}
}

// TryAcquire marks id busy. It returns false if id was already busy.
func (s *InFlightSet) TryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.ids[id]; busy {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *InFlightSet) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *InFlightSet) Busy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.ids[id]
	return busy
}
