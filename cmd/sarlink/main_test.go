package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/appnet-org/meshsar/pkg/packet"
	"github.com/appnet-org/meshsar/pkg/transport"
	"github.com/stretchr/testify/require"
)

func TestRunDump(t *testing.T) {
	cfg, err := LoadConfig(map[string]string{
		"SARLINK_MODE":         "dump",
		"SARLINK_SEGMENT_SIZE": "4",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runDump(cfg, strings.NewReader("ABCDEFGHI"), &out))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "  0 First        4041424344", lines[0])
	require.Equal(t, "  1 Continuation 8045464748", lines[1])
	require.Equal(t, "  2 Last         c049", lines[2])
}

func TestWritePacket(t *testing.T) {
	var out bytes.Buffer
	writePacket(&out, []byte("hi\x00"), packet.PduMeshBeacon)
	require.Equal(t, "MeshBeacon\t3\t\"hi\\x00\"\n", out.String())
}

func TestRunSend(t *testing.T) {
	rx, err := transport.NewUDPLink("127.0.0.1:0", 0)
	require.NoError(t, err)
	defer rx.Close()

	cfg, err := LoadConfig(map[string]string{
		"SARLINK_MODE":     "send",
		"SARLINK_LISTEN":   "127.0.0.1:0",
		"SARLINK_PEER":     rx.LocalAddr().String(),
		"SARLINK_PDU_TYPE": "ProvisioningPdu",
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	long := strings.Repeat("x", 50)
	require.NoError(t, runSend(context.Background(), cfg, strings.NewReader("hello\n"+long+"\n")))

	received := make(chan transport.Packet, 2)
	proc, err := transport.NewProcessor(transport.Config{
		PacketReceived: func(payload []byte, typ packet.PduType) {
			received <- transport.Packet{Type: typ, Payload: payload}
		},
		SegmentSend: func([]byte) {},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rx.Serve(ctx, proc) }()

	for _, want := range []string{"hello", long} {
		select {
		case pkt := <-received:
			require.Equal(t, packet.PduProvisioning, pkt.Type)
			require.Equal(t, want, string(pkt.Payload))
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for packet")
		}
	}
}
