package sgip

import "sync/atomic"

const (
	// MaxSegmentLen is the largest content sent as a single short message.
	MaxSegmentLen = 140

	// MaxSegments is the largest number of parts one message is split into.
	MaxSegments = 255

	udhLen            = 6 // 05 00 03 ref total idx
	udhInfoLen        = 0x05
	udhIEIConcat8bit  = 0x00
	udhIEIConcatLen   = 0x03
	segmentPayloadLen = MaxSegmentLen - udhLen
)

// Segmenter splits long content into concatenated short message parts.
// Each split message takes the next 8-bit reference number.
type Segmenter struct {
	ref uint32
}

// NewSegmenter returns a Segmenter whose first reference number is start.
func NewSegmenter(start uint8) *Segmenter {
	return &Segmenter{ref: uint32(start)}
}

// Split returns content unchanged when it fits in one message. Otherwise
// every part is prefixed with a concatenation header carrying a shared
// reference, the total count and a 1-based index. Content beyond
// MaxSegments parts is dropped.
func (s *Segmenter) Split(content []byte) [][]byte {
	if len(content) <= MaxSegmentLen {
		return [][]byte{content}
	}

	ref := byte(atomic.AddUint32(&s.ref, 1) - 1)
	total := (len(content) + segmentPayloadLen - 1) / segmentPayloadLen
	if total > MaxSegments {
		total = MaxSegments
	}

	parts := make([][]byte, total)
	for i := range parts {
		start := i * segmentPayloadLen
		end := start + segmentPayloadLen
		if end > len(content) {
			end = len(content)
		}
		part := make([]byte, udhLen, udhLen+end-start)
		part[0] = udhInfoLen
		part[1] = udhIEIConcat8bit
		part[2] = udhIEIConcatLen
		part[3] = ref
		part[4] = byte(total)
		part[5] = byte(i + 1)
		parts[i] = append(part, content[start:end]...)
	}
	return parts
}
