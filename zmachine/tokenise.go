package zmachine

import "zed/zstring"

type word struct {
	text             string
	startingLocation uint32 // 1-based offset within the text buffer
}

// Tokenise splits the line already stored in the text buffer and fills the
// parse buffer with one 4 byte record per word: dictionary address (0 on
// miss), length in bytes, and offset within the text buffer.
func (z *ZMachine) Tokenise(textBufferAddr uint32, parseBufferAddr uint32) {
	var words []word
	current := ""
	currentStart := uint32(1)

	// Text starts one byte past the max-length byte and is zero terminated
	for offset := uint32(1); ; offset++ {
		chr := z.Core.ReadByte(textBufferAddr + offset)
		if chr == 0 {
			break
		}

		switch {
		case chr == ' ': // Space separates but is not itself a token
			if current != "" {
				words = append(words, word{text: current, startingLocation: currentStart})
			}
			current = ""
			currentStart = offset + 1

		case z.dictionary.IsSeparator(chr): // Separators become single character tokens
			if current != "" {
				words = append(words, word{text: current, startingLocation: currentStart})
			}
			words = append(words, word{text: string(rune(chr)), startingLocation: offset})
			current = ""
			currentStart = offset + 1

		default:
			current += string(rune(chr))
		}
	}

	if current != "" {
		words = append(words, word{text: current, startingLocation: currentStart})
	}

	maxWords := int(z.Core.ReadByte(parseBufferAddr))
	if len(words) > maxWords {
		words = words[:maxWords]
	}

	writer := z.Core.NewWriter(parseBufferAddr + 1)
	writer.WriteByte(uint8(len(words)))
	for _, w := range words {
		writer.WriteHalfWord(z.dictionary.Find(zstring.EncodeDictionaryWord(w.text)))
		writer.WriteByte(uint8(len(w.text)))
		writer.WriteByte(uint8(w.startingLocation))
	}
}
