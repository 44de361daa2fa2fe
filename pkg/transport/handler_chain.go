package transport

import (
	"fmt"
	"sync/atomic"

	"github.com/appnet-org/meshsar/pkg/logging"
	"github.com/appnet-org/meshsar/pkg/packet"
	"go.uber.org/zap"
)

// Handler observes segments as they pass through a Processor. OnSend runs
// before a segment reaches the send sink; OnReceive runs after a segment has
// been decoded and before it reaches the reassembler.
type Handler interface {
	OnSend(seg packet.Segment) error
	OnReceive(seg packet.Segment) error
}

// HandlerChain runs a list of handlers in order.
type HandlerChain struct {
	name     string
	handlers []Handler
}

// NewHandlerChain creates a new handler chain
func NewHandlerChain(name string, handlers ...Handler) *HandlerChain {
	return &HandlerChain{
		name:     name,
		handlers: handlers,
	}
}

// Name returns the chain name used in error messages.
func (hc *HandlerChain) Name() string {
	return hc.name
}

func (hc *HandlerChain) AddHandler(handler Handler) {
	hc.handlers = append(hc.handlers, handler)
}

// RemoveHandler removes a handler from the chain
func (hc *HandlerChain) RemoveHandler(handler Handler) bool {
	for i, h := range hc.handlers {
		if h == handler {
			hc.handlers = append(hc.handlers[:i], hc.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// GetHandlers returns a copy of the handlers slice
func (hc *HandlerChain) GetHandlers() []Handler {
	handlers := make([]Handler, len(hc.handlers))
	copy(handlers, hc.handlers)
	return handlers
}

// OnSend passes seg through every handler, stopping at the first error.
func (hc *HandlerChain) OnSend(seg packet.Segment) error {
	for i, handler := range hc.handlers {
		if err := handler.OnSend(seg); err != nil {
			return fmt.Errorf("handler %d in chain %s failed: %w", i, hc.name, err)
		}
	}
	return nil
}

// OnReceive passes seg through every handler, stopping at the first error.
func (hc *HandlerChain) OnReceive(seg packet.Segment) error {
	for i, handler := range hc.handlers {
		if err := handler.OnReceive(seg); err != nil {
			return fmt.Errorf("handler %d in chain %s failed: %w", i, hc.name, err)
		}
	}
	return nil
}

// LoggingHandler logs every segment at debug level.
type LoggingHandler struct{}

func (LoggingHandler) OnSend(seg packet.Segment) error {
	logging.Debug("Segment out", segmentFields(seg)...)
	return nil
}

func (LoggingHandler) OnReceive(seg packet.Segment) error {
	logging.Debug("Segment in", segmentFields(seg)...)
	return nil
}

func segmentFields(seg packet.Segment) []zap.Field {
	return []zap.Field{
		zap.Stringer("flag", seg.Flag),
		zap.Stringer("pduType", seg.Type),
		zap.Int("size", len(seg.Payload)),
	}
}

// Stats counts segments and payload bytes by direction and SAR flag. The
// counters may be read from any goroutine.
type Stats struct {
	sent     [4]atomic.Uint64
	received [4]atomic.Uint64
	txBytes  atomic.Uint64
	rxBytes  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Sent     map[packet.SarFlag]uint64
	Received map[packet.SarFlag]uint64
	TxBytes  uint64
	RxBytes  uint64
}

func (s *Stats) OnSend(seg packet.Segment) error {
	s.sent[seg.Flag&0x3].Add(1)
	s.txBytes.Add(uint64(len(seg.Payload)))
	return nil
}

func (s *Stats) OnReceive(seg packet.Segment) error {
	s.received[seg.Flag&0x3].Add(1)
	s.rxBytes.Add(uint64(len(seg.Payload)))
	return nil
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Sent:     make(map[packet.SarFlag]uint64, 4),
		Received: make(map[packet.SarFlag]uint64, 4),
		TxBytes:  s.txBytes.Load(),
		RxBytes:  s.rxBytes.Load(),
	}
	for i := range s.sent {
		flag := packet.SarFlag(i)
		snap.Sent[flag] = s.sent[i].Load()
		snap.Received[flag] = s.received[i].Load()
	}
	return snap
}

// Packets returns the number of packets sent and received, counted by their
// terminal segments.
func (snap StatsSnapshot) Packets() (sent, received uint64) {
	sent = snap.Sent[packet.SarComplete] + snap.Sent[packet.SarLast]
	received = snap.Received[packet.SarComplete] + snap.Received[packet.SarLast]
	return sent, received
}
