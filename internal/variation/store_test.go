package variation

import (
	"reflect"
	"testing"
)

func TestStoreCombinedOrder(t *testing.T) {
	s := NewStore()
	s.AddGenerated([]string{"g1", "g2"})
	s.AddManual("m1")

	want := []string{"g1", "g2", "m1"}
	if got := s.Combined(); !reflect.DeepEqual(got, want) {
		t.Errorf("Combined() = %v, want %v", got, want)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestStoreSourceOf(t *testing.T) {
	s := NewStore()
	s.AddGenerated([]string{"g1", "g2"})
	s.AddManual("m1")

	if got := s.SourceOf(1); got != SourceGenerated {
		t.Errorf("SourceOf(1) = %v, want generated", got)
	}
	if got := s.SourceOf(2); got != SourceManual {
		t.Errorf("SourceOf(2) = %v, want manual", got)
	}
}

func TestStoreDeleteManualShiftsIndices(t *testing.T) {
	s := NewStore()
	s.AddManual("m0")
	s.AddManual("m1")
	s.AddManual("m2")

	s.DeleteManual(1)

	want := []string{"m0", "m2"}
	if got := s.Manual(); !reflect.DeepEqual(got, want) {
		t.Errorf("Manual() after delete = %v, want %v", got, want)
	}

	// Former index 2 is now index 1.
	s.UpdateManual(1, "edited")
	if got := s.Manual()[1]; got != "edited" {
		t.Errorf("Manual()[1] = %q, want %q", got, "edited")
	}
}

func TestStoreDeleteGenerated(t *testing.T) {
	s := NewStore()
	s.AddGenerated([]string{"g0", "g1", "g2"})
	s.AddManual("m0")

	s.DeleteGenerated(0)

	want := []string{"g1", "g2", "m0"}
	if got := s.Combined(); !reflect.DeepEqual(got, want) {
		t.Errorf("Combined() = %v, want %v", got, want)
	}
}

func TestStoreUpdateManualOutOfRange(t *testing.T) {
	s := NewStore()
	s.AddManual("m0")

	s.UpdateManual(5, "nope")
	s.UpdateManual(-1, "nope")

	if got := s.Manual()[0]; got != "m0" {
		t.Errorf("Manual()[0] = %q, want %q", got, "m0")
	}
}

func TestStoreDeleteOutOfRange(t *testing.T) {
	s := NewStore()
	s.AddGenerated([]string{"g0"})

	s.DeleteGenerated(3)
	s.DeleteManual(0)

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStoreReplaceGeneratedAndReset(t *testing.T) {
	s := NewStore()
	s.AddGenerated([]string{"old"})
	s.ReplaceGenerated([]string{"new1", "new2"})

	if got := s.Generated(); !reflect.DeepEqual(got, []string{"new1", "new2"}) {
		t.Errorf("Generated() = %v", got)
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", s.Len())
	}
}
