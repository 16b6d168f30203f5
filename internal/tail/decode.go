package tail

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// decodeLine converts raw line bytes to a string, replacing invalid UTF-8
// sequences with U+FFFD so every emitted line is valid text on the wire.
// Decoders carry state, so each call builds its own.
func decodeLine(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
