package participant

// Set is an arena of participant records indexed by key. Insertion order is
// kept and used to break ties between equal marginal costs.
type Set struct {
	records []Participant
	index   map[string]int
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// Add validates p and appends a copy.
func (s *Set) Add(p Participant) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, ok := s.index[p.Key]; ok {
		return invalid(p.Key, "key", "is already taken")
	}
	s.index[p.Key] = len(s.records)
	s.records = append(s.records, p.Clone())
	return nil
}

// Replace swaps the record with the same key, keeping its position. It
// reports false when no record has that key.
func (s *Set) Replace(p Participant) (bool, error) {
	i, ok := s.index[p.Key]
	if !ok {
		return false, nil
	}
	if err := p.Validate(); err != nil {
		return true, err
	}
	s.records[i] = p.Clone()
	return true, nil
}

// Get returns a copy of the record with the given key.
func (s *Set) Get(key string) (Participant, bool) {
	i, ok := s.index[key]
	if !ok {
		return Participant{}, false
	}
	return s.records[i].Clone(), true
}

// Len returns the number of records.
func (s *Set) Len() int { return len(s.records) }

// All returns copies of every record in insertion order.
func (s *Set) All() []Participant {
	out := make([]Participant, len(s.records))
	for i, p := range s.records {
		out[i] = p.Clone()
	}
	return out
}
