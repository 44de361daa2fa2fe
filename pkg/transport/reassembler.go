package transport

import (
	"fmt"

	"github.com/appnet-org/meshsar/pkg/packet"
)

// Packet is one logical PDU together with its type.
type Packet struct {
	Type    packet.PduType
	Payload []byte
}

type reassemblyState uint8

const (
	stateIdle reassemblyState = iota
	stateAccumulating
)

// Reassembler rebuilds packets from an ordered stream of segments. It keeps at
// most one reassembly in flight and is not safe for concurrent use; the
// caller must serialize calls.
type Reassembler struct {
	strict    bool
	onAnomaly func(error)

	state   reassemblyState
	pduType packet.PduType
	buffer  []byte
}

// NewReassembler creates an idle reassembler. With strict set, segments whose
// PDU type is not one of the assigned values are dropped as malformed.
func NewReassembler(strict bool) *Reassembler {
	return &Reassembler{strict: strict}
}

// SetAnomalyHandler installs fn to observe sequence violations that are
// absorbed without dropping the segment (ErrReassemblyRestarted,
// ErrCompleteDuringReassembly).
func (r *Reassembler) SetAnomalyHandler(fn func(error)) {
	r.onAnomaly = fn
}

// Feed decodes one wire segment and advances the state machine. It returns the
// completed packet, if any. A non-nil error means the segment was dropped
// without touching the reassembly state.
func (r *Reassembler) Feed(data []byte) (*Packet, error) {
	seg, err := packet.ParseSegment(data, r.strict)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSegment, err)
	}
	return r.Apply(seg)
}

// Apply advances the state machine with an already decoded segment.
//
//	Idle         + Complete     -> deliver payload, Idle
//	Idle         + First        -> start buffer, Accumulating
//	Accumulating + Continuation -> append, Accumulating
//	Accumulating + Last         -> append and deliver, Idle
//	Idle         + Continuation -> dropped (ErrOrphanContinuation)
//	Idle         + Last         -> dropped (ErrOrphanLast)
//	Accumulating + First        -> prior buffer discarded, restarted
//	Accumulating + Complete     -> deliver payload, buffer kept
func (r *Reassembler) Apply(seg packet.Segment) (*Packet, error) {
	switch seg.Flag {
	case packet.SarComplete:
		if r.state == stateAccumulating {
			r.anomaly(fmt.Errorf("%w: %d bytes of %s kept", ErrCompleteDuringReassembly, len(r.buffer), r.pduType))
		}
		return &Packet{Type: seg.Type, Payload: cloneBytes(seg.Payload)}, nil

	case packet.SarFirst:
		if r.state == stateAccumulating {
			r.anomaly(fmt.Errorf("%w: %d bytes of %s dropped", ErrReassemblyRestarted, len(r.buffer), r.pduType))
		}
		r.state = stateAccumulating
		r.pduType = seg.Type
		r.buffer = cloneBytes(seg.Payload)
		return nil, nil

	case packet.SarContinuation:
		if r.state != stateAccumulating {
			return nil, ErrOrphanContinuation
		}
		r.buffer = append(r.buffer, seg.Payload...)
		return nil, nil

	case packet.SarLast:
		if r.state != stateAccumulating {
			return nil, ErrOrphanLast
		}
		// The terminal segment's type is the one delivered.
		pkt := &Packet{Type: seg.Type, Payload: append(r.buffer, seg.Payload...)}
		r.Reset()
		return pkt, nil

	default:
		return nil, fmt.Errorf("%w: flag %s", ErrMalformedSegment, seg.Flag)
	}
}

// Pending reports the number of buffered bytes and whether a reassembly is in
// flight.
func (r *Reassembler) Pending() (int, bool) {
	return len(r.buffer), r.state == stateAccumulating
}

// Reset abandons any reassembly in flight.
func (r *Reassembler) Reset() {
	r.state = stateIdle
	r.pduType = packet.PduNetwork
	r.buffer = nil
}

func (r *Reassembler) anomaly(err error) {
	if r.onAnomaly != nil {
		r.onAnomaly(err)
	}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
