package sgip

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmenter_Split(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		content := bytes.Repeat([]byte{'a'}, MaxSegmentLen)
		parts := NewSegmenter(0).Split(content)
		require.Len(t, parts, 1)
		assert.Equal(t, content, parts[0])
	})

	t.Run("concatenated", func(t *testing.T) {
		content := make([]byte, 300)
		for i := range content {
			content[i] = byte(i)
		}

		s := NewSegmenter(42)
		parts := s.Split(content)
		require.Len(t, parts, 3)

		var joined []byte
		for i, p := range parts {
			require.True(t, len(p) <= MaxSegmentLen)
			assert.Equal(t, []byte{0x05, 0x00, 0x03, 42, 3, byte(i + 1)}, p[:6])
			joined = append(joined, p[6:]...)
		}
		assert.Len(t, parts[0], MaxSegmentLen)
		assert.Len(t, parts[2], 6+300-2*134)
		assert.Equal(t, content, joined)

		// The next message takes the next reference.
		parts = s.Split(content)
		assert.Equal(t, byte(43), parts[0][3])
	})

	t.Run("reference_wraps", func(t *testing.T) {
		s := NewSegmenter(255)
		content := make([]byte, MaxSegmentLen+1)
		assert.Equal(t, byte(255), s.Split(content)[0][3])
		assert.Equal(t, byte(0), s.Split(content)[0][3])
	})

	t.Run("max_segments", func(t *testing.T) {
		content := make([]byte, (MaxSegments+3)*segmentPayloadLen)
		parts := NewSegmenter(0).Split(content)
		require.Len(t, parts, MaxSegments)
		last := parts[MaxSegments-1]
		assert.Equal(t, byte(MaxSegments), last[4])
		assert.Equal(t, byte(MaxSegments), last[5])
	})
}

func TestSubmit_Segments(t *testing.T) {
	s := NewSubmit("10655", "8613800000000", bytes.Repeat([]byte("x"), 200))
	s.SetSequenceNumber(9)
	s.MessageCoding = CodingBinary

	parts := s.Segments(NewSegmenter(7))
	require.Len(t, parts, 2)
	for i, p := range parts {
		assert.False(t, p.HasSequenceNumber())
		assert.Equal(t, uint8(TpUdhiHeader), p.TpUdhi)
		assert.Equal(t, uint8(CodingBinary), p.MessageCoding)
		assert.Equal(t, s.UserNumbers, p.UserNumbers)
		assert.Equal(t, byte(i+1), p.Content[5])
		assert.Equal(t, byte(7), p.Content[3])
	}
	assert.Equal(t, uint8(TpUdhiNone), s.TpUdhi)

	single := NewSubmit("10655", "8613800000000", []byte("short")).Segments(NewSegmenter(0))
	require.Len(t, single, 1)
	assert.Equal(t, uint8(TpUdhiNone), single[0].TpUdhi)
	assert.Equal(t, []byte("short"), single[0].Content)
}
