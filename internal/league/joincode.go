package league

import (
	"math/rand"
	"strings"
)

// codeAlphabet avoids ambiguous characters (no I, L, O, 0, 1) so codes
// survive being read aloud or retyped.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed join-code length.
const CodeLength = 6

// newJoinCode draws a code uniformly from the alphabet.
func newJoinCode(rnd *rand.Rand) string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(codeAlphabet[rnd.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// NormalizeCode canonicalizes user input for case-insensitive lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
