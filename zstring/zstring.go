package zstring

import (
	"strings"

	"zed/zcore"
)

// v3 alphabet tables. Z-characters 6-31 index into these; A2 position 0
// (z-char 6) is the 10 bit literal escape and so has no table entry.
var a0 = [...]rune{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z'}
var a1 = [...]rune{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z'}
var a2 = [...]rune{'\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'}

type alphabet int

const (
	alphaA0 alphabet = 0
	alphaA1 alphabet = 1
	alphaA2 alphabet = 2
)

// Decode reads packed z-characters starting at addr until a word with the
// top bit set, returning the text and the number of bytes consumed.
func Decode(core *zcore.Core, addr uint32) (string, uint32) {
	return decode(core, addr, false)
}

func decode(core *zcore.Core, addr uint32, inAbbreviation bool) (string, uint32) {
	reader := core.NewReader(addr)

	// First unpack the words into a stream of 5 bit z-characters,
	// terminating on the end bit.
	var zchrs []uint8
	for {
		halfWord := reader.NextHalfWord()
		zchrs = append(zchrs, uint8((halfWord>>10)&0b11111), uint8((halfWord>>5)&0b11111), uint8(halfWord&0b11111))

		if halfWord>>15 == 1 {
			break
		}
	}

	var text strings.Builder
	currentAlphabet := alphaA0

	for ix := 0; ix < len(zchrs); ix++ {
		zchr := zchrs[ix]

		switch {
		case zchr == 0:
			text.WriteByte(' ')
			currentAlphabet = alphaA0

		case zchr <= 3: // Abbreviation, the next z-char picks the entry
			if ix+1 >= len(zchrs) {
				break // String ended mid-abbreviation, nothing to splice
			}
			ix++
			if !inAbbreviation { // Abbreviations never nest
				text.WriteString(expandAbbreviation(core, zchr, zchrs[ix]))
			}
			currentAlphabet = alphaA0

		case zchr == 4:
			currentAlphabet = alphaA1

		case zchr == 5:
			currentAlphabet = alphaA2

		case currentAlphabet == alphaA2 && zchr == 6: // 10 bit ZSCII literal
			if ix+2 >= len(zchrs) {
				ix = len(zchrs)
				break
			}
			code := uint16(zchrs[ix+1])<<5 | uint16(zchrs[ix+2])
			ix += 2
			if r, ok := ZsciiToUnicode(code); ok {
				text.WriteRune(r)
			}
			currentAlphabet = alphaA0

		default:
			switch currentAlphabet {
			case alphaA0:
				text.WriteRune(a0[zchr-6])
			case alphaA1:
				text.WriteRune(a1[zchr-6])
			case alphaA2:
				text.WriteRune(a2[zchr-7])
			}
			currentAlphabet = alphaA0
		}
	}

	return text.String(), reader.Addr() - addr
}

func expandAbbreviation(core *zcore.Core, z uint8, x uint8) string {
	entryAddr := uint32(core.AbbreviationTableBase) + 2*(32*uint32(z-1)+uint32(x))
	strAddr := 2 * uint32(core.ReadHalfWord(entryAddr)) // Word address

	str, _ := decode(core, strAddr, true)
	return str
}
