package data

import (
	"encoding/binary"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// ParseSeed turns seed text into a world seed. Base-36 text is read as a
// number with its sign dropped and truncated to 32 bits; any other text,
// including numbers too long for 64 bits, is hashed.
func ParseSeed(s string) uint32 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 36, 64); err == nil {
		if n < 0 {
			n = -n
		}
		return uint32(n)
	}
	sum := blake2b.Sum256([]byte(norm.NFC.String(s)))
	return binary.LittleEndian.Uint32(sum[:4])
}

// FormatSeed is the base-36 text ParseSeed reads back as seed.
func FormatSeed(seed uint32) string {
	return strconv.FormatUint(uint64(seed), 36)
}

// ColorSeed derives the palette seed of a world from its terrain seed.
func ColorSeed(seed uint32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], seed)
	sum := blake2b.Sum256(append([]byte("color:"), buf[:]...))
	return binary.LittleEndian.Uint32(sum[:4])
}
