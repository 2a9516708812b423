package action

import "sync"

// store holds one state value and replaces it as a whole
type store[S any] struct {
	mu        sync.Mutex
	state     S
	observers map[int]func(S)
	next      int
}

func newStore[S any](initial S) *store[S] {
	return &store[S]{state: initial, observers: make(map[int]func(S))}
}

// State returns the current state
func (s *store[S]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe calls fn after every state change until cancel is called
func (s *store[S]) Subscribe(fn func(S)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// swap replaces the state with fn(current). When fn returns an error the
// state is left alone and the error is returned.
func (s *store[S]) swap(fn func(S) (S, error)) (S, error) {
	s.mu.Lock()
	next, err := fn(s.state)
	if err != nil {
		current := s.state
		s.mu.Unlock()
		return current, err
	}
	s.state = next
	observers := make([]func(S), 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(next)
	}
	return next, nil
}

func (s *store[S]) set(next S) {
	s.swap(func(S) (S, error) { return next, nil })
}
