package chance

import "sync"

// Scripted replays a fixed list of draws, reducing each modulo n. Once the
// script is exhausted it keeps returning 0. Tests use it to force specific
// branches.
type Scripted struct {
	mu     sync.Mutex
	values []int
	pos    int
}

func NewScripted(values ...int) *Scripted {
	return &Scripted{values: values}
}

func (s *Scripted) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.values) {
		return 0
	}
	v := s.values[s.pos] % n
	s.pos++
	if v < 0 {
		v += n
	}
	return v
}
