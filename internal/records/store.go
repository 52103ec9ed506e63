package records

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Store maps record names to records, keeping first-load order. Reads hand
// out clones so callers can never alias stored state.
//
// Store is not safe for concurrent use; the owning workspace serializes access.
type Store struct {
	order []string
	data  map[string]Record
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{data: make(map[string]Record)}
}

// Load inserts or replaces the record stored under name.
func (s *Store) Load(name string, data Record) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidInput
	}
	rec := data.Clone()
	rec.Name = name
	if _, ok := s.data[name]; !ok {
		s.order = append(s.order, name)
	}
	s.data[name] = rec
	return nil
}

// Get returns a deep copy of the named record.
func (s *Store) Get(name string) (Record, error) {
	rec, ok := s.data[name]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// Delete removes the named record. Deleting a missing name is a no-op.
func (s *Store) Delete(name string) {
	if _, ok := s.data[name]; !ok {
		return
	}
	delete(s.data, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Names returns record names in first-load order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

// Len reports how many records are stored.
func (s *Store) Len() int {
	return len(s.order)
}

// All returns deep copies of every record in first-load order.
func (s *Store) All() []Record {
	out := make([]Record, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.data[name].Clone())
	}
	return out
}

// UpsertByName merges incoming into existing keyed by record name. Both
// inputs are cloned first and never mutated. A name present in incoming
// wholesale-replaces the existing record; names only in existing are kept.
// The result follows first-seen order with duplicates collapsed to their
// last value.
func UpsertByName(existing, incoming []Record) []Record {
	var (
		order []string
		byKey = make(map[string]Record, len(existing)+len(incoming))
	)
	add := func(rec Record) {
		if _, seen := byKey[rec.Name]; !seen {
			order = append(order, rec.Name)
		}
		byKey[rec.Name] = rec
	}
	for _, rec := range CloneAll(existing) {
		add(rec)
	}
	for _, rec := range CloneAll(incoming) {
		add(rec)
	}

	out := make([]Record, 0, len(order))
	for _, name := range order {
		out = append(out, byKey[name])
	}
	return out
}

// RemoveByName returns a copy of recs without the named record.
func RemoveByName(recs []Record, name string) []Record {
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if rec.Name == name {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out
}
