package domain

import "math/rand"

// CodeAlphabet is the 32-symbol set for game codes. Visually ambiguous
// characters (0/O, 1/I) are excluded.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed length of a game code.
const CodeLength = 6

// NewCode draws a game code uniformly from the restricted alphabet. Collision
// checking against existing codes is the caller's job.
func NewCode(rnd *rand.Rand) string {
	buf := make([]byte, CodeLength)
	for i := range buf {
		buf[i] = CodeAlphabet[rnd.Intn(len(CodeAlphabet))]
	}
	return string(buf)
}
