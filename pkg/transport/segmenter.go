package transport

import (
	"fmt"

	"github.com/appnet-org/meshsar/pkg/packet"
)

const (
	// DefaultMTU is the minimum GATT ATT_MTU.
	DefaultMTU = 23

	// attOverhead is the ATT opcode (1B) plus attribute handle (2B) of a
	// write or notification.
	attOverhead = 3

	// DefaultSegmentSize fills one write at DefaultMTU: 23 - 3 - 1 = 19.
	DefaultSegmentSize = DefaultMTU - attOverhead - packet.HeaderSize
)

// SegmentSizeForMTU returns the payload capacity of one segment for the given
// ATT_MTU, or an error if the MTU leaves no room for payload.
func SegmentSizeForMTU(mtu int) (int, error) {
	size := mtu - attOverhead - packet.HeaderSize
	if size < 1 {
		return 0, fmt.Errorf("%w: MTU %d leaves no room for payload", ErrInvalidSegmentSize, mtu)
	}
	return size, nil
}

// Segmenter splits packets into segments of at most size payload bytes. It
// holds no state between calls.
type Segmenter struct {
	size int
}

// NewSegmenter creates a segmenter; size must be at least 1.
func NewSegmenter(size int) (*Segmenter, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSegmentSize, size)
	}
	return &Segmenter{size: size}, nil
}

// SegmentSize returns the payload capacity per segment.
func (s *Segmenter) SegmentSize() int {
	return s.size
}

// Each calls emit with every segment of pkt, in order. A packet that fits in
// one segment is sent Complete; otherwise it is sent as First, zero or more
// Continuation, and a Last carrying the remainder. Emission stops at the
// first error returned by emit.
func (s *Segmenter) Each(pkt []byte, t packet.PduType, emit func(seg packet.Segment) error) error {
	if len(pkt) <= s.size {
		return emit(packet.Segment{Flag: packet.SarComplete, Type: t, Payload: pkt})
	}

	if err := emit(packet.Segment{Flag: packet.SarFirst, Type: t, Payload: pkt[:s.size]}); err != nil {
		return err
	}
	remaining := pkt[s.size:]

	for len(remaining) > s.size {
		if err := emit(packet.Segment{Flag: packet.SarContinuation, Type: t, Payload: remaining[:s.size]}); err != nil {
			return err
		}
		remaining = remaining[s.size:]
	}

	return emit(packet.Segment{Flag: packet.SarLast, Type: t, Payload: remaining})
}

// Split returns the serialized segments of pkt.
func (s *Segmenter) Split(pkt []byte, t packet.PduType) [][]byte {
	segments := make([][]byte, 0, s.count(len(pkt)))
	_ = s.Each(pkt, t, func(seg packet.Segment) error {
		segments = append(segments, seg.Serialize())
		return nil
	})
	return segments
}

// count returns the number of segments a packet of length n produces.
func (s *Segmenter) count(n int) int {
	if n <= s.size {
		return 1
	}
	return 1 + (n-1)/s.size
}
