package discountcode

import "strings"

const (
	Prefix        = "LEG-"
	DefaultLength = 10

	// Alphabet omits I, O, 0 and 1.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Source is the subset of *math/rand.Rand the generator needs.
type Source interface {
	Intn(n int) int
}

// Generate returns Prefix followed by length characters drawn from Alphabet.
// Codes only need to be unique within the code table; callers retry on collision.
func Generate(src Source, length int) string {
	if length <= 0 {
		length = DefaultLength
	}
	var sb strings.Builder
	sb.Grow(len(Prefix) + length)
	sb.WriteString(Prefix)
	for i := 0; i < length; i++ {
		sb.WriteByte(Alphabet[src.Intn(len(Alphabet))])
	}
	return sb.String()
}

// Normalize trims and upper-cases user input before lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
