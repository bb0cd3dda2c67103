package mirror

// State is the observable synchronization state.
type State struct {
	Initialized bool
	RecordCount int
	Loading     bool
}

// LoadResult describes how LoadAll or ForceRefresh completed.
type LoadResult struct {
	// Count is the number of records in the local store afterwards
	Count int
	// FromCache is true when the local store was valid and no fetch happened
	FromCache bool
	// Degraded is true when the fetch failed and the failure was swallowed
	Degraded bool
	// FetchErr holds the swallowed fetch failure when Degraded is true
	FetchErr error
}

// State returns a snapshot of the current state.
func (s *Synchronizer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// TotalPages returns how many pages of pageSize the mirrored records fill.
func (s *Synchronizer) TotalPages(pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	count := s.State().RecordCount
	return (count + pageSize - 1) / pageSize
}

// OnStateChange registers fn to receive a snapshot after every state change.
func (s *Synchronizer) OnStateChange(fn func(State)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Synchronizer) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	observers := s.observers
	s.mu.Unlock()

	s.metrics.SetRecords(snapshot.RecordCount)
	s.metrics.SetLoading(snapshot.Loading)
	for _, observe := range observers {
		observe(snapshot)
	}
}

func (s *Synchronizer) setCount(n int) {
	s.update(func(st *State) { st.RecordCount = n })
}

func (s *Synchronizer) setLoading(loading bool) {
	s.update(func(st *State) { st.Loading = loading })
}

func (s *Synchronizer) isInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Initialized
}
