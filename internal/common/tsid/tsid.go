// Package tsid generates time-sorted 64-bit identifiers. The upper 42 bits
// hold milliseconds since 2020-01-01, the lower 22 bits a random component
// that is incremented within the same millisecond, so ids from one
// generator are strictly increasing.
package tsid

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

const (
	// TSID epoch: 2020-01-01T00:00:00Z
	epoch = 1577836800000

	randomBits = 22
	randomMask = (1 << randomBits) - 1

	// Crockford Base32 alphabet
	alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

// ErrInvalidCharacter is returned when decoding a string that is not
// Crockford Base32.
var ErrInvalidCharacter = errors.New("invalid character in TSID")

// Generator generates TSIDs. The zero value is ready to use.
type Generator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewGenerator creates a new TSID generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns a new id, greater than every id this generator returned before.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	clock := time.Now
	if g.now != nil {
		clock = g.now
	}

	var b [4]byte
	_, _ = rand.Read(b[:])
	random := int64(binary.BigEndian.Uint32(b[:]) & randomMask)

	id := (clock().UnixMilli()-epoch)<<randomBits | random
	if id <= g.last {
		// Same millisecond (or clock moved back): continue from the last id.
		id = g.last + 1
	}
	g.last = id
	return id
}

// String encodes id as a 13-character Crockford Base32 string.
func String(id int64) string {
	value := uint64(id)
	result := make([]byte, 13)
	for i := 12; i >= 0; i-- {
		result[i] = alphabet[value&0x1F]
		value >>= 5
	}
	return string(result)
}

// Parse decodes a Crockford Base32 string produced by String.
func Parse(s string) (int64, error) {
	var result uint64
	for i := 0; i < len(s); i++ {
		idx := crockfordIndex(s[i])
		if idx < 0 {
			return 0, ErrInvalidCharacter
		}
		result = result<<5 | uint64(idx)
	}
	return int64(result), nil
}

// Timestamp extracts the creation time of id.
func Timestamp(id int64) time.Time {
	return time.UnixMilli(id>>randomBits + epoch)
}

// crockfordIndex returns the numeric value of a Crockford Base32 character
func crockfordIndex(c byte) int {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	switch c {
	case 'O':
		return 0
	case 'I', 'L':
		return 1
	case 'U':
		return -1
	}
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}
