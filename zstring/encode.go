package zstring

import (
	"encoding/binary"
	"strings"
)

const dictionaryZChars = 6

// EncodeDictionaryWord packs a word into the 4 byte key format used by v3
// dictionary entries: exactly 6 z-characters in two words, padded with z-char
// 5 and truncated past that. Characters outside A0 go through an A2 shift or
// the 10 bit escape.
func EncodeDictionaryWord(word string) []uint8 {
	zchrs := make([]uint8, 0, dictionaryZChars)

	for _, r := range strings.ToLower(word) {
		if len(zchrs) >= dictionaryZChars {
			break
		}

		if pos := indexOf(a0[:], r); pos >= 0 {
			zchrs = append(zchrs, uint8(pos)+6)
			continue
		}

		if pos := indexOf(a2[:], r); pos >= 0 {
			zchrs = append(zchrs, 5, uint8(pos)+7)
			continue
		}

		code, ok := UnicodeToZscii(r)
		if !ok {
			code = '?'
		}
		zchrs = append(zchrs, 5, 6, uint8(code>>5)&0b11111, uint8(code)&0b11111)
	}

	for len(zchrs) < dictionaryZChars {
		zchrs = append(zchrs, 5)
	}
	zchrs = zchrs[:dictionaryZChars]

	encoded := make([]uint8, 4)
	binary.BigEndian.PutUint16(encoded[0:2], uint16(zchrs[0])<<10|uint16(zchrs[1])<<5|uint16(zchrs[2]))
	binary.BigEndian.PutUint16(encoded[2:4], 0x8000|uint16(zchrs[3])<<10|uint16(zchrs[4])<<5|uint16(zchrs[5]))

	return encoded
}

func indexOf(table []rune, r rune) int {
	for ix, entry := range table {
		if entry == r {
			return ix
		}
	}
	return -1
}
