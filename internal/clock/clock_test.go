package clock

import (
	"testing"
	"time"
)

func TestVirtual_SetTimeThenNow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewVirtual(start)

	if !c.Now().Equal(start) {
		t.Fatalf("expected initial time %v, got %v", start, c.Now())
	}

	next := start.Add(time.Hour)
	c.SetTime(next)

	if !c.Now().Equal(next) {
		t.Fatalf("expected advanced time %v, got %v", next, c.Now())
	}
}
