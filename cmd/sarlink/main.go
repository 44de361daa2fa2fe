// Command sarlink moves proxy PDUs over a UDP link using SAR segmentation.
//
//	SARLINK_MODE=recv SARLINK_LISTEN=127.0.0.1:17000 sarlink
//	SARLINK_MODE=send SARLINK_LISTEN=127.0.0.1:0 SARLINK_PEER=127.0.0.1:17000 sarlink < lines.txt
//	SARLINK_SEGMENT_SIZE=4 sarlink dump <<< ABCDEFGHI
//
// The first argument, if present, overrides SARLINK_MODE.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/appnet-org/meshsar/pkg/logging"
	"github.com/appnet-org/meshsar/pkg/packet"
	"github.com/appnet-org/meshsar/pkg/transport"
	"go.uber.org/zap"
)

// maxLineSize bounds one packet read from stdin in send mode.
const maxLineSize = 1 << 20

func main() {
	cfg, err := LoadConfig(nil)
	if err != nil {
		panic(err)
	}
	if len(os.Args) > 1 {
		cfg.Mode = os.Args[1]
	}

	if err := logging.Init(cfg.LoggingConfig()); err != nil {
		panic(fmt.Sprintf("Failed to initialize logging: %v", err))
	}
	defer func() { _ = logging.Sync() }()

	if err := cfg.Validate(); err != nil {
		logging.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case ModeDump:
		err = runDump(cfg, os.Stdin, os.Stdout)
	case ModeSend:
		err = runSend(ctx, cfg, os.Stdin)
	case ModeRecv:
		err = runRecv(ctx, cfg, os.Stdout)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal("sarlink failed", zap.String("mode", cfg.Mode), zap.Error(err))
	}
	logging.Info("Shutting down sarlink...")
}

// runDump reads stdin as a single packet and prints its segments.
func runDump(cfg *Config, in io.Reader, out io.Writer) error {
	size, _ := cfg.ResolveSegmentSize()
	typ, _ := cfg.ResolvePduType()

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read packet: %w", err)
	}
	segmenter, err := transport.NewSegmenter(size)
	if err != nil {
		return err
	}

	for i, seg := range segmenter.Split(data, typ) {
		flag, _ := packet.DecodeHeader(seg[0])
		if _, err := fmt.Fprintf(out, "%3d %-12s %s\n", i, flag, hex.EncodeToString(seg)); err != nil {
			return err
		}
	}
	return nil
}

// newLinkProcessor wires a Processor to a UDP link with logging and stats
// handlers installed.
func newLinkProcessor(cfg *Config, received func([]byte, packet.PduType)) (*transport.UDPLink, *transport.Processor, *transport.Stats, error) {
	size, _ := cfg.ResolveSegmentSize()

	link, err := transport.NewUDPLink(cfg.Listen, size+packet.HeaderSize)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Peer != "" {
		if err := link.SetPeer(cfg.Peer); err != nil {
			_ = link.Close()
			return nil, nil, nil, err
		}
	}

	stats := &transport.Stats{}
	proc, err := transport.NewProcessor(transport.Config{
		PacketReceived: received,
		SegmentSend:    link.SegmentSink(nil),
		SegmentSize:    size,
		StrictPduTypes: cfg.Strict,
		Handlers:       transport.NewHandlerChain("sarlink", transport.LoggingHandler{}, stats),
	})
	if err != nil {
		_ = link.Close()
		return nil, nil, nil, err
	}

	logging.Info("Link ready",
		zap.String("mode", cfg.Mode),
		zap.Stringer("local", link.LocalAddr()),
		zap.String("peer", cfg.Peer),
		zap.Int("segmentSize", size),
		zap.Bool("strict", cfg.Strict))
	return link, proc, stats, nil
}

// runSend sends every stdin line as one packet.
func runSend(ctx context.Context, cfg *Config, in io.Reader) error {
	typ, _ := cfg.ResolvePduType()

	link, proc, stats, err := newLinkProcessor(cfg, func([]byte, packet.PduType) {})
	if err != nil {
		return err
	}
	defer link.Close()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		proc.SendPacket(scanner.Bytes(), typ)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	logStats("Send complete", stats)
	return nil
}

// runRecv prints every reassembled packet until ctx is cancelled.
func runRecv(ctx context.Context, cfg *Config, out io.Writer) error {
	link, proc, stats, err := newLinkProcessor(cfg, func(payload []byte, typ packet.PduType) {
		writePacket(out, payload, typ)
	})
	if err != nil {
		return err
	}
	defer link.Close()

	timers := transport.NewTimerManager()
	defer timers.Stop()
	if cfg.StatsInterval > 0 {
		timers.SchedulePeriodic("stats", cfg.StatsInterval, func() {
			logStats("Link stats", stats)
		})
	}

	err = link.Serve(ctx, proc)
	logStats("Receive complete", stats)
	return err
}

func writePacket(out io.Writer, payload []byte, typ packet.PduType) {
	if _, err := fmt.Fprintf(out, "%s\t%d\t%q\n", typ, len(payload), payload); err != nil {
		logging.Warn("Failed to write packet", zap.Error(err))
	}
}

func logStats(msg string, stats *transport.Stats) {
	snap := stats.Snapshot()
	sent, received := snap.Packets()
	logging.Info(msg,
		zap.Uint64("packetsSent", sent),
		zap.Uint64("packetsReceived", received),
		zap.Uint64("txBytes", snap.TxBytes),
		zap.Uint64("rxBytes", snap.RxBytes))
}
