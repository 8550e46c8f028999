package token

import "strconv"

// Token is an opaque handle for an outstanding claim on a shared resource.
type Token int

// Invalid means "no token held".
const Invalid Token = -1

// Valid reports whether t refers to an issued token.
func (t Token) Valid() bool {
	return t != Invalid
}

func (t Token) String() string {
	if t == Invalid {
		return "invalid"
	}
	return strconv.Itoa(int(t))
}
