package bookings

import "math/rand/v2"

// refAlphabet excludes look-alike characters (0/O, 1/I/L) so codes survive
// being read over the phone. Codes are not security tokens; uniqueness is
// enforced by the database, collisions are retried.
const refAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const refLength = 6

// newReference generates a human-facing booking reference code.
func newReference() string {
	b := make([]byte, refLength)
	for i := range b {
		b[i] = refAlphabet[rand.IntN(len(refAlphabet))]
	}
	return string(b)
}
