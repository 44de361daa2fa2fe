package packet

import (
	"errors"
	"fmt"
)

// HeaderSize is the size of the SAR header that precedes every segment payload.
const HeaderSize = 1

const (
	sarShift = 6
	typeMask = 0x3F
)

var (
	ErrEmptySegment     = errors.New("segment has no header byte")
	ErrUndefinedPduType = errors.New("undefined PDU type")
)

// Segment is the decoded view of one wire segment.
type Segment struct {
	Flag    SarFlag
	Type    PduType
	Payload []byte // aliases the input of ParseSegment
}

// EncodeHeader packs a SAR flag and PDU type into the header byte:
// [SAR(2b)][PduType(6b)]. Type bits above the 6-bit field are discarded.
func EncodeHeader(flag SarFlag, t PduType) byte {
	return byte(flag)<<sarShift | byte(t)&typeMask
}

// DecodeHeader unpacks a header byte. Every byte value decodes: all four
// 2-bit flag values are assigned.
func DecodeHeader(b byte) (SarFlag, PduType) {
	return SarFlag(b >> sarShift), PduType(b & typeMask)
}

// ParseSegment decodes a wire segment. With strict set, PDU types outside the
// four assigned values are rejected with ErrUndefinedPduType.
func ParseSegment(data []byte, strict bool) (Segment, error) {
	if len(data) < HeaderSize {
		return Segment{}, ErrEmptySegment
	}
	flag, t := DecodeHeader(data[0])
	if strict && !t.Defined() {
		return Segment{}, fmt.Errorf("%w: 0x%02x", ErrUndefinedPduType, uint8(t))
	}
	return Segment{
		Flag:    flag,
		Type:    t,
		Payload: data[HeaderSize:],
	}, nil
}

// Serialize encodes the segment into a freshly allocated byte slice:
// [Header(1B)][Payload]
func (s Segment) Serialize() []byte {
	buf := make([]byte, HeaderSize+len(s.Payload))
	buf[0] = EncodeHeader(s.Flag, s.Type)
	copy(buf[HeaderSize:], s.Payload)
	return buf
}
