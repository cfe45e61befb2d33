package zmachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sread into the text buffer at 0x480 and the parse buffer at 0x4C0
var sreadCode = []uint8{0xE4, 0x0F, 0x04, 0x80, 0x04, 0xC0}

func prepareBuffers(z *ZMachine, maxChars uint8, maxWords uint8) {
	z.Core.WriteByte(textBufferAddr, maxChars)
	z.Core.WriteByte(parseBuffer, maxWords)
}

func TestSreadWritesAndTokenises(t *testing.T) {
	z, ch := newTestMachine(t, sreadCode...)
	prepareBuffers(z, 20, 5)
	z.writeVariable(16, 1, false) // Location for the status bar

	ch.input <- InputResponse{Text: "TAKE, Lamp"}
	require.True(t, z.StepMachine())

	// Input is lowercased and null terminated
	expected := "take, lamp"
	for ix := range expected {
		assert.Equal(t, expected[ix], z.Core.ReadByte(textBufferAddr+1+uint32(ix)))
	}
	assert.Equal(t, uint8(0), z.Core.ReadByte(textBufferAddr+1+uint32(len(expected))))

	// Three tokens: "take" (in the dictionary), the "," separator and "lamp"
	assert.Equal(t, uint8(3), z.Core.ReadByte(parseBuffer+1))

	assert.Equal(t, uint16(dictionaryBase+19), z.Core.ReadHalfWord(parseBuffer+2))
	assert.Equal(t, uint8(4), z.Core.ReadByte(parseBuffer+4))
	assert.Equal(t, uint8(1), z.Core.ReadByte(parseBuffer+5))

	assert.Equal(t, uint16(0), z.Core.ReadHalfWord(parseBuffer+6), "separator itself is not a dictionary word")
	assert.Equal(t, uint8(1), z.Core.ReadByte(parseBuffer+8))
	assert.Equal(t, uint8(5), z.Core.ReadByte(parseBuffer+9))

	assert.Equal(t, uint16(0), z.Core.ReadHalfWord(parseBuffer+10))
	assert.Equal(t, uint8(4), z.Core.ReadByte(parseBuffer+12))
	assert.Equal(t, uint8(7), z.Core.ReadByte(parseBuffer+13))
}

func TestSreadEmitsStatusBarBeforeBlocking(t *testing.T) {
	z, ch := newTestMachine(t, sreadCode...)
	prepareBuffers(z, 20, 5)
	z.writeVariable(16, 1, false)
	z.writeVariable(17, 5, false)
	z.writeVariable(18, 10, false)

	ch.input <- InputResponse{Text: "go"}
	require.True(t, z.StepMachine())

	var statusBar *StatusBar
	var sawWait bool
	for len(ch.output) > 0 {
		switch msg := (<-ch.output).(type) {
		case StatusBar:
			require.False(t, sawWait, "status bar must precede the input request")
			statusBar = &msg
		case StateChangeRequest:
			if msg == WaitForInput {
				sawWait = true
			}
		}
	}

	require.NotNil(t, statusBar)
	assert.Equal(t, "mailbox", statusBar.PlaceName)
	assert.Equal(t, 5, statusBar.Score)
	assert.Equal(t, 10, statusBar.Moves)
	assert.False(t, statusBar.IsTimeBased)
	assert.True(t, sawWait)
}

func TestSreadTruncatesToBufferSize(t *testing.T) {
	z, ch := newTestMachine(t, sreadCode...)
	prepareBuffers(z, 4, 5)

	ch.input <- InputResponse{Text: "abcdefgh"}
	require.True(t, z.StepMachine())

	assert.Equal(t, uint8('d'), z.Core.ReadByte(textBufferAddr+4))
	assert.Equal(t, uint8(0), z.Core.ReadByte(textBufferAddr+5))
}

func TestSreadQuitCancelsCleanly(t *testing.T) {
	z, ch := newTestMachine(t, sreadCode...)
	prepareBuffers(z, 20, 5)

	ch.input <- InputResponse{Quit: true}
	assert.False(t, z.StepMachine())
}

func TestSreadClosedChannelCancels(t *testing.T) {
	z, ch := newTestMachine(t, sreadCode...)
	prepareBuffers(z, 20, 5)

	close(ch.input)
	assert.False(t, z.StepMachine())
}

func TestTokeniseRespectsParseBufferLimit(t *testing.T) {
	z, ch := newTestMachine(t, sreadCode...)
	prepareBuffers(z, 40, 2)

	ch.input <- InputResponse{Text: "go go go go"}
	require.True(t, z.StepMachine())

	assert.Equal(t, uint8(2), z.Core.ReadByte(parseBuffer+1))
}

func TestShowStatusOpcode(t *testing.T) {
	z, ch := newTestMachine(t, 0xBC) // show_status
	z.writeVariable(16, 1, false)
	z.writeVariable(17, 0xFFFB, false) // Negative scores happen
	z.writeVariable(18, 3, false)

	require.True(t, z.StepMachine())

	msg := <-ch.output
	statusBar, ok := msg.(StatusBar)
	require.True(t, ok)
	assert.Equal(t, "mailbox", statusBar.PlaceName)
	assert.Equal(t, -5, statusBar.Score)
	assert.Equal(t, 3, statusBar.Moves)
}

func TestTimeBasedStatusBar(t *testing.T) {
	mem := buildStory([]uint8{0xBC})
	mem[0x01] |= 0b10 // Hours/minutes game
	z, ch := loadMachine(t, mem)
	z.writeVariable(16, 1, false)

	require.True(t, z.StepMachine())

	statusBar := (<-ch.output).(StatusBar)
	assert.True(t, statusBar.IsTimeBased)
}

func TestOutputStreamThreeCapturesText(t *testing.T) {
	z, ch := newTestMachine(t,
		0xF3, 0x4F, 0x03, 0x04, 0x80, // output_stream 3 table 0x480
		0xB2, 0x98, 0xE5, // print "ab"
		0xF3, 0x3F, 0xFF, 0xFD, // output_stream -3
	)

	require.True(t, z.StepMachine())
	require.True(t, z.StepMachine())
	require.True(t, z.StepMachine())

	assert.Equal(t, uint16(2), z.Core.ReadHalfWord(textBufferAddr), "size word holds the byte count")
	assert.Equal(t, uint8('a'), z.Core.ReadByte(textBufferAddr+2))
	assert.Equal(t, uint8('b'), z.Core.ReadByte(textBufferAddr+3))

	assert.Equal(t, "", drainText(ch), "no text reaches the screen while stream 3 is open")
}

func TestOutputStreamScreenToggle(t *testing.T) {
	z, ch := newTestMachine(t,
		0xF3, 0x3F, 0xFF, 0xFF, // output_stream -1
		0xB2, 0x98, 0xE5, // print "ab" goes nowhere
		0xF3, 0x7F, 0x01, // output_stream 1
		0xB2, 0x98, 0xE5, // print "ab" visible again
	)

	for range 4 {
		require.True(t, z.StepMachine())
	}

	assert.Equal(t, "ab", drainText(ch))
}

func TestTranscriptToggleSetsFlags2(t *testing.T) {
	z, _ := newTestMachine(t,
		0xF3, 0x7F, 0x02, // output_stream 2
		0xF3, 0x3F, 0xFF, 0xFE, // output_stream -2
	)

	require.True(t, z.StepMachine())
	assert.Equal(t, uint8(1), z.Core.ReadByte(0x10)&0b1)

	require.True(t, z.StepMachine())
	assert.Equal(t, uint8(0), z.Core.ReadByte(0x10)&0b1)
}

func TestSplitAndSetWindow(t *testing.T) {
	z, ch := newTestMachine(t,
		0xEA, 0x7F, 0x02, // split_window 2
		0xEB, 0x7F, 0x01, // set_window 1
		0xB2, 0x98, 0xE5, // print "ab" while the upper window is selected
		0xEB, 0x7F, 0x00, // set_window 0
	)

	for range 4 {
		require.True(t, z.StepMachine())
	}

	var upperText string
	for len(ch.output) > 0 {
		switch msg := (<-ch.output).(type) {
		case UpperWindowText:
			upperText += string(msg)
		case string:
			t.Errorf("unexpected lower window text %q", msg)
		}
	}
	assert.Equal(t, "ab", upperText)
	assert.False(t, z.upperWindowActive)
	assert.Equal(t, 2, z.upperWindowHeight)
}

func TestSoundEffectForwardedToHost(t *testing.T) {
	z, ch := newTestMachine(t, 0xF5, 0x7F, 0x01) // sound_effect 1

	require.True(t, z.StepMachine())

	for len(ch.output) > 0 {
		if request, ok := (<-ch.output).(SoundEffectRequest); ok {
			assert.Equal(t, uint16(1), request.Number)
			return
		}
	}
	t.Error("no sound effect request seen")
}
