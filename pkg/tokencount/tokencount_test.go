package tokencount

import "testing"

func TestCountNonEmptyText(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := c.Count("hello world"); n == 0 {
		t.Error("expected a positive token count for non-empty text")
	}
}

func TestCountEmptyText(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := c.Count(""); n != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", n)
	}
}

func TestCountNilCounterFallsBackToApproximation(t *testing.T) {
	var c *Counter
	if n := c.Count("abcdefgh"); n != 2 {
		t.Errorf("expected fallback estimate of 2, got %d", n)
	}
}

func TestAsPlaybookCounterDelegatesToCount(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn := c.AsPlaybookCounter()
	if fn("hello") != c.Count("hello") {
		t.Error("expected AsPlaybookCounter to delegate to Count")
	}
}
