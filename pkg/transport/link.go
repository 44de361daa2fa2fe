package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/appnet-org/meshsar/pkg/common"
	"github.com/appnet-org/meshsar/pkg/logging"
	"go.uber.org/zap"
)

// DefaultReadBufferSize bounds the size of one inbound datagram.
const DefaultReadBufferSize = 2048

// UDPLink is a datagram bearer that carries exactly one SAR segment per UDP
// datagram. It stands in for a GATT characteristic: writes are limited to the
// link MTU and segments arrive as discrete units.
type UDPLink struct {
	conn       *net.UDPConn
	mtu        int
	bufferPool *common.BufferPool

	mu   sync.RWMutex
	peer *net.UDPAddr

	closed atomic.Bool
}

// NewUDPLink binds a UDP socket on address. mtu is the largest segment,
// header included, that WriteSegment accepts; zero selects
// DefaultSegmentSize plus the header byte.
func NewUDPLink(address string, mtu int) (*UDPLink, error) {
	if mtu < 0 {
		return nil, fmt.Errorf("invalid link MTU %d", mtu)
	}
	if mtu == 0 {
		mtu = DefaultSegmentSize + 1
	}

	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", address, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	return &UDPLink{
		conn:       conn,
		mtu:        mtu,
		bufferPool: common.NewBufferPool(max(DefaultReadBufferSize, mtu)),
	}, nil
}

// SetPeer fixes the remote address segments are written to.
func (l *UDPLink) SetPeer(address string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return fmt.Errorf("failed to resolve peer %q: %w", address, err)
	}
	l.mu.Lock()
	l.peer = udpAddr
	l.mu.Unlock()
	return nil
}

// Peer returns the current remote address, or nil.
func (l *UDPLink) Peer() *net.UDPAddr {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.peer
}

// MTU returns the largest segment the link writes.
func (l *UDPLink) MTU() int {
	return l.mtu
}

// LocalAddr returns the local UDP address of the link.
func (l *UDPLink) LocalAddr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// WriteSegment sends one segment as a single datagram to the peer.
func (l *UDPLink) WriteSegment(segment []byte) error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	if len(segment) > l.mtu {
		return fmt.Errorf("%w: %d > %d", ErrSegmentSize, len(segment), l.mtu)
	}
	peer := l.Peer()
	if peer == nil {
		return ErrNoPeer
	}
	_, err := l.conn.WriteToUDP(segment, peer)
	return err
}

// SegmentSink adapts WriteSegment to the Processor's send callback. Write
// failures are logged and passed to onError when it is set.
func (l *UDPLink) SegmentSink(onError func(error)) func([]byte) {
	return func(segment []byte) {
		if err := l.WriteSegment(segment); err != nil {
			logging.Warn("Failed to write segment", zap.Int("size", len(segment)), zap.Error(err))
			if onError != nil {
				onError(err)
			}
		}
	}
}

// Serve reads datagrams until ctx is done or the link is closed, feeding each
// to proc from this goroutine only. If no peer is set, the first sender
// becomes the peer.
func (l *UDPLink) Serve(ctx context.Context, proc *Processor) error {
	stop := context.AfterFunc(ctx, func() {
		// Unblock the pending read.
		_ = l.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		buffer := l.bufferPool.Get()
		n, addr, err := l.conn.ReadFromUDP(buffer)
		if err != nil {
			l.bufferPool.Put(buffer)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				return ErrLinkClosed
			}
			return err
		}

		if l.Peer() == nil {
			l.mu.Lock()
			if l.peer == nil {
				l.peer = addr
				logging.Info("Learned link peer", zap.Stringer("peer", addr))
			}
			l.mu.Unlock()
		}

		// The processor copies whatever it keeps, so the buffer can be
		// recycled as soon as it returns.
		proc.ReceiveSegment(buffer[:n])
		l.bufferPool.Put(buffer)
	}
}

// Close shuts the socket down; a running Serve returns ErrLinkClosed.
func (l *UDPLink) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	return l.conn.Close()
}
