// Package gameid generates sortable identifiers for tables and hands.
//
// An ID is a UUIDv7 encoded as 26 characters of Crockford base32, optionally
// preceded by a type prefix ("hand_01j9...") in the style of TypeID.
package gameid

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of the encoded suffix
const Length = 26

// Generator produces IDs from a random source. A nil source uses crypto/rand.
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a generator reading randomness from r
func NewGenerator(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Generate returns a new unprefixed ID
func (g *Generator) Generate() string {
	var (
		u   uuid.UUID
		err error
	)
	if g.rand != nil {
		u, err = uuid.NewV7FromReader(g.rand)
	} else {
		u, err = uuid.NewV7()
	}
	if err != nil {
		panic("failed to generate uuid: " + err.Error())
	}
	return encode(u)
}

// Typed returns a new ID with the given prefix, e.g. Typed("hand")
func (g *Generator) Typed(prefix string) string {
	return prefix + "_" + g.Generate()
}

var defaultGenerator = NewGenerator(nil)

// Generate creates a new ID using crypto randomness
func Generate() string {
	return defaultGenerator.Generate()
}

// Typed creates a new prefixed ID using crypto randomness
func Typed(prefix string) string {
	return defaultGenerator.Typed(prefix)
}

// encode writes the 128 bits as 26 five-bit groups, the first group
// carrying only the top 3 bits
func encode(u uuid.UUID) string {
	out := make([]byte, Length)
	var acc uint32
	bits := 2 // pad to 130 bits
	i := 0
	for _, b := range u {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[i] = alphabet[(acc>>bits)&0x1f]
			i++
		}
	}
	return string(out)
}

// Parse decodes an ID (with or without prefix) back to its UUID
func Parse(id string) (uuid.UUID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	if err := Validate(id); err != nil {
		return uuid.Nil, err
	}
	var u uuid.UUID
	acc := uint32(strings.IndexByte(alphabet, id[0]))
	bits := 3
	n := 0
	for i := 1; i < len(id); i++ {
		acc = acc<<5 | uint32(strings.IndexByte(alphabet, id[i]))
		bits += 5
		if bits >= 8 {
			bits -= 8
			u[n] = byte(acc >> bits)
			n++
		}
	}
	return u, nil
}

// Validate checks if an ID suffix is 26 valid base32 characters
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("id must be exactly %d characters, got %d", Length, len(id))
	}
	// The first character holds only 3 bits
	if id[0] > '7' {
		return fmt.Errorf("id first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
