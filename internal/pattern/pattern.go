// Package pattern fills buffers with a payload derived from a sequence
// number, so a reader can tell which message a buffer carries and whether
// it was overwritten in transit.
package pattern

import "strconv"

// Fill writes the decimal digits of seq into b, repeating them until b is
// full. The last repetition is truncated.
func Fill(b []byte, seq int) {
	var tmp [20]byte
	digits := strconv.AppendInt(tmp[:0], int64(seq), 10)
	for i := 0; i < len(b); i += copy(b[i:], digits) {
	}
}

// Verify reports whether b holds exactly what Fill(b, seq) would write.
func Verify(b []byte, seq int) bool {
	var tmp [20]byte
	digits := strconv.AppendInt(tmp[:0], int64(seq), 10)
	for i := range b {
		if b[i] != digits[i%len(digits)] {
			return false
		}
	}
	return true
}
