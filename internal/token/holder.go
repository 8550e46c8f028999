package token

// Holder issues tokens and tracks which of them are outstanding. It calls
// onChange whenever the holder moves between "no tokens" and "some tokens".
//
// A Holder is not safe for concurrent use; callers confine it to one
// goroutine.
type Holder struct {
	next        Token
	outstanding map[Token]struct{}
	onChange    func(hasTokens bool)
}

// NewHolder creates an empty holder. onChange may be nil.
func NewHolder(onChange func(hasTokens bool)) *Holder {
	return &Holder{
		outstanding: make(map[Token]struct{}),
		onChange:    onChange,
	}
}

// Acquire issues a new token and releases previous. The new token is
// registered before previous is dropped, so the holder never passes through
// an empty state when a token is being replaced.
func (h *Holder) Acquire(previous Token) Token {
	wasEmpty := len(h.outstanding) == 0

	t := h.next
	h.next++
	h.outstanding[t] = struct{}{}
	delete(h.outstanding, previous)

	if wasEmpty {
		h.notify(true)
	}
	return t
}

// Release drops t. Invalid and unknown tokens are ignored.
func (h *Holder) Release(t Token) {
	if _, ok := h.outstanding[t]; !ok {
		return
	}
	delete(h.outstanding, t)
	if len(h.outstanding) == 0 {
		h.notify(false)
	}
}

// Holds reports whether t is outstanding.
func (h *Holder) Holds(t Token) bool {
	_, ok := h.outstanding[t]
	return ok
}

// HasTokens reports whether any token is outstanding.
func (h *Holder) HasTokens() bool {
	return len(h.outstanding) > 0
}

// Len returns the number of outstanding tokens.
func (h *Holder) Len() int {
	return len(h.outstanding)
}

func (h *Holder) notify(hasTokens bool) {
	if h.onChange != nil {
		h.onChange(hasTokens)
	}
}
