package token

import "testing"

func TestHolderAcquireIssuesDistinctTokens(t *testing.T) {
	h := NewHolder(nil)

	a := h.Acquire(Invalid)
	b := h.Acquire(Invalid)

	if a == b {
		t.Fatalf("expected distinct tokens, got %v twice", a)
	}
	if !a.Valid() || !b.Valid() {
		t.Fatalf("expected valid tokens, got %v and %v", a, b)
	}
	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
}

func TestHolderAcquireReplacesPrevious(t *testing.T) {
	var changes []bool
	h := NewHolder(func(hasTokens bool) { changes = append(changes, hasTokens) })

	first := h.Acquire(Invalid)
	second := h.Acquire(first)

	if h.Holds(first) {
		t.Fatalf("previous token %v still held after replace", first)
	}
	if !h.Holds(second) {
		t.Fatalf("new token %v not held", second)
	}
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
	// Replacing must not flap through the empty state.
	if len(changes) != 1 || changes[0] != true {
		t.Fatalf("onChange calls = %v, want [true]", changes)
	}
}

func TestHolderReleaseNotifiesOnLastToken(t *testing.T) {
	var changes []bool
	h := NewHolder(func(hasTokens bool) { changes = append(changes, hasTokens) })

	a := h.Acquire(Invalid)
	b := h.Acquire(Invalid)

	h.Release(a)
	if !h.HasTokens() {
		t.Fatal("expected tokens after releasing one of two")
	}
	h.Release(b)
	if h.HasTokens() {
		t.Fatal("expected no tokens after releasing both")
	}

	want := []bool{true, false}
	if len(changes) != len(want) {
		t.Fatalf("onChange calls = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Fatalf("onChange calls = %v, want %v", changes, want)
		}
	}
}

func TestHolderReleaseIgnoresInvalidAndUnknown(t *testing.T) {
	calls := 0
	h := NewHolder(func(bool) { calls++ })

	h.Release(Invalid)
	h.Release(Token(42))
	if calls != 0 {
		t.Fatalf("onChange called %d times for no-op releases", calls)
	}

	a := h.Acquire(Invalid)
	h.Release(a)
	h.Release(a)
	if calls != 2 {
		t.Fatalf("onChange called %d times, want 2", calls)
	}
}

func TestTokenString(t *testing.T) {
	if got := Invalid.String(); got != "invalid" {
		t.Fatalf("Invalid.String() = %q", got)
	}
	if got := Token(7).String(); got != "7" {
		t.Fatalf("Token(7).String() = %q", got)
	}
}
