package variation

import "sync"

// Source labels where a variation came from.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceManual    Source = "manual"
)

// Store holds the two labeled variation collections. Generated variants
// are disposable machine output and may only be deleted; manual variants
// are user-authored and fully editable in place.
type Store struct {
	mu        sync.Mutex
	generated []string
	manual    []string
}

// NewStore creates an empty variation store.
func NewStore() *Store {
	return &Store{}
}

// AddGenerated appends machine-produced variants.
func (s *Store) AddGenerated(list []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated = append(s.generated, list...)
}

// ReplaceGenerated swaps the generated collection for a fresh batch.
func (s *Store) ReplaceGenerated(list []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated = append([]string(nil), list...)
}

// AddManual appends a user-authored variant.
func (s *Store) AddManual(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual = append(s.manual, text)
}

// UpdateManual replaces the manual variant at index. Out-of-range
// indices are a no-op; callers guard before offering an edit.
func (s *Store) UpdateManual(index int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.manual) {
		return
	}
	s.manual[index] = text
}

// DeleteGenerated removes the generated variant at index; later indices
// shift down by one.
func (s *Store) DeleteGenerated(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.generated) {
		return
	}
	s.generated = append(s.generated[:index], s.generated[index+1:]...)
}

// DeleteManual removes the manual variant at index; later indices shift
// down by one.
func (s *Store) DeleteManual(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.manual) {
		return
	}
	s.manual = append(s.manual[:index], s.manual[index+1:]...)
}

// Combined returns generated followed by manual. Order matters: a flat
// index below the generated length classifies the item as generated.
func (s *Store) Combined() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.generated)+len(s.manual))
	out = append(out, s.generated...)
	out = append(out, s.manual...)
	return out
}

// SourceOf classifies a flat combined-list index.
func (s *Store) SourceOf(index int) Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < len(s.generated) {
		return SourceGenerated
	}
	return SourceManual
}

// Generated returns a copy of the generated collection.
func (s *Store) Generated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.generated...)
}

// Manual returns a copy of the manual collection.
func (s *Store) Manual() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.manual...)
}

// Len returns the combined count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.generated) + len(s.manual)
}

// Reset discards both collections.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated = nil
	s.manual = nil
}
