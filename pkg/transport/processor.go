package transport

import (
	"errors"
	"fmt"

	"github.com/appnet-org/meshsar/pkg/logging"
	"github.com/appnet-org/meshsar/pkg/packet"
	"go.uber.org/zap"
)

// Config configures a Processor.
type Config struct {
	// PacketReceived is called once per reassembled packet. Required.
	PacketReceived func(payload []byte, t packet.PduType)

	// SegmentSend is called once per outgoing segment, in order. Required.
	SegmentSend func(segment []byte)

	// SegmentSize is the payload capacity of one outgoing segment. Zero
	// selects DefaultSegmentSize.
	SegmentSize int

	// OnError, if set, receives diagnostics for dropped segments, sequence
	// violations and handler failures. It never changes delivery.
	OnError func(err error)

	// StrictPduTypes drops inbound segments whose PDU type is unassigned.
	StrictPduTypes bool

	// Handlers, if set, observe every segment in both directions.
	Handlers *HandlerChain
}

// Processor couples a Segmenter and a Reassembler behind the two callbacks of
// a proxy bearer. Calls must be serialized by the caller; callbacks run inline
// before SendPacket or ReceiveSegment return.
type Processor struct {
	segmenter   *Segmenter
	reassembler *Reassembler

	packetReceived func([]byte, packet.PduType)
	segmentSend    func([]byte)
	onError        func(error)
	handlers       *HandlerChain
}

// NewProcessor validates cfg and creates a Processor.
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.PacketReceived == nil {
		return nil, ErrNilPacketReceived
	}
	if cfg.SegmentSend == nil {
		return nil, ErrNilSegmentSend
	}

	size := cfg.SegmentSize
	if size == 0 {
		size = DefaultSegmentSize
	}
	segmenter, err := NewSegmenter(size)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		segmenter:      segmenter,
		reassembler:    NewReassembler(cfg.StrictPduTypes),
		packetReceived: cfg.PacketReceived,
		segmentSend:    cfg.SegmentSend,
		onError:        cfg.OnError,
		handlers:       cfg.Handlers,
	}
	p.reassembler.SetAnomalyHandler(p.report)
	return p, nil
}

// SegmentSize returns the configured payload capacity per segment.
func (p *Processor) SegmentSize() int {
	return p.segmenter.SegmentSize()
}

// SendPacket segments pkt and hands every segment to the send callback.
func (p *Processor) SendPacket(pkt []byte, t packet.PduType) {
	err := p.segmenter.Each(pkt, t, func(seg packet.Segment) error {
		if p.handlers != nil {
			if err := p.handlers.OnSend(seg); err != nil {
				return err
			}
		}
		p.segmentSend(seg.Serialize())
		return nil
	})
	if err != nil {
		p.report(fmt.Errorf("send of %d byte %s packet aborted: %w", len(pkt), t, err))
	}
}

// ReceiveSegment feeds one inbound segment to the reassembler and delivers the
// packet it completes, if any. Undecodable segments are dropped; nothing is
// returned or raised to the caller.
func (p *Processor) ReceiveSegment(data []byte) {
	seg, err := packet.ParseSegment(data, p.reassembler.strict)
	if err != nil {
		p.report(fmt.Errorf("%w: %w", ErrMalformedSegment, err))
		return
	}

	if p.handlers != nil {
		if err := p.handlers.OnReceive(seg); err != nil {
			p.report(fmt.Errorf("segment dropped: %w", err))
			return
		}
	}

	pkt, err := p.reassembler.Apply(seg)
	if err != nil {
		p.report(err)
		return
	}
	if pkt == nil {
		return
	}

	logging.Debug("Packet reassembled",
		zap.Stringer("pduType", pkt.Type),
		zap.Int("size", len(pkt.Payload)))
	p.packetReceived(pkt.Payload, pkt.Type)
}

// Pending reports the bytes buffered by an unfinished reassembly.
func (p *Processor) Pending() (int, bool) {
	return p.reassembler.Pending()
}

// Reset abandons any reassembly in flight.
func (p *Processor) Reset() {
	p.reassembler.Reset()
}

func (p *Processor) report(err error) {
	level := zap.DebugLevel
	if !isReassemblyDiagnostic(err) {
		level = zap.WarnLevel
	}
	if ce := logging.L().Check(level, "SAR diagnostic"); ce != nil {
		ce.Write(zap.Error(err))
	}
	if p.onError != nil {
		p.onError(err)
	}
}

func isReassemblyDiagnostic(err error) bool {
	for _, target := range []error{
		ErrMalformedSegment,
		ErrOrphanContinuation,
		ErrOrphanLast,
		ErrReassemblyRestarted,
		ErrCompleteDuringReassembly,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
