package persona

// Store 提供角色查询。
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore 是只读的内存角色表，保留种子顺序。
type MemoryStore struct {
	order []string
	byID  map[string]Persona
}

// NewMemoryStore indexes items by ID. A later duplicate ID replaces the earlier entry in place.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]Persona, len(items))}
	for _, p := range items {
		if _, seen := s.byID[p.ID]; !seen {
			s.order = append(s.order, p.ID)
		}
		s.byID[p.ID] = p
	}
	return s
}

func (s *MemoryStore) List() []Persona {
	out := make([]Persona, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Default returns the built-in companion, or the first persona when it is missing.
func Default(s Store) (Persona, bool) {
	if p, ok := s.FindByID(DefaultID); ok {
		return p, true
	}
	items := s.List()
	if len(items) == 0 {
		return Persona{}, false
	}
	return items[0], true
}
