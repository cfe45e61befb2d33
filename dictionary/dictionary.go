package dictionary

import (
	"bytes"
	"fmt"
	"sort"

	"zed/zcore"
)

const keyLength = 4 // v3 entries start with 6 z-characters in 4 bytes

type Header struct {
	InputCodes  []uint8 // Word separators beyond space
	entryLength uint8
	entryCount  uint16
}

type entry struct {
	address uint16
	key     []uint8
}

// Dictionary is the parsed word table. Entries are stored sorted by key, as
// the story file guarantees, so lookup is a binary search.
type Dictionary struct {
	Header  Header
	entries []entry
}

func Parse(baseAddress uint32, core *zcore.Core) (*Dictionary, error) {
	reader := core.NewReader(baseAddress)

	numInputCodes := reader.NextByte()
	inputCodes := make([]uint8, numInputCodes)
	for ix := range inputCodes {
		inputCodes[ix] = reader.NextByte()
	}

	header := Header{
		InputCodes:  inputCodes,
		entryLength: reader.NextByte(),
		entryCount:  reader.NextHalfWord(),
	}

	if header.entryLength < keyLength {
		return nil, fmt.Errorf("dictionary entry length %d, need at least %d", header.entryLength, keyLength)
	}

	entries := make([]entry, header.entryCount)
	for ix := range entries {
		entryAddress := reader.Addr()
		entries[ix] = entry{
			address: uint16(entryAddress),
			key:     core.ReadSlice(entryAddress, entryAddress+keyLength),
		}
		reader.Seek(entryAddress + uint32(header.entryLength))
	}

	return &Dictionary{Header: header, entries: entries}, nil
}

// Find returns the byte address of the entry with the given encoded key, or
// 0 when the word isn't in the dictionary.
func (d *Dictionary) Find(key []uint8) uint16 {
	ix := sort.Search(len(d.entries), func(i int) bool {
		return bytes.Compare(d.entries[i].key, key) >= 0
	})

	if ix < len(d.entries) && bytes.Equal(d.entries[ix].key, key) {
		return d.entries[ix].address
	}

	return 0
}

func (d *Dictionary) IsSeparator(chr uint8) bool {
	for _, separator := range d.Header.InputCodes {
		if chr == separator {
			return true
		}
	}
	return false
}
