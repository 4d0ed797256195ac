package sweep

import (
	"testing"
	"time"
)

func TestStoreGetSet(t *testing.T) {
	s := NewStore()
	if s.Get() != nil {
		t.Error("empty store should return nil")
	}
	if age := s.AgeSeconds(); age != -1 {
		t.Errorf("empty store age = %g, want -1", age)
	}

	table := &Table{GeneratedAt: time.Now().UTC().Add(-10 * time.Second)}
	s.Set(table)

	if s.Get() != table {
		t.Error("Get did not return the stored table")
	}
	age := s.AgeSeconds()
	if age < 9 || age > 12 {
		t.Errorf("age = %g, want about 10 seconds", age)
	}
}
