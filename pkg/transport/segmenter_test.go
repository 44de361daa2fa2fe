package transport

import (
	"bytes"
	"testing"

	"github.com/appnet-org/meshsar/pkg/packet"
	"github.com/stretchr/testify/require"
)

// makePayload returns n bytes with a repeating pattern.
func makePayload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func flagsOf(t *testing.T, segments [][]byte) []packet.SarFlag {
	t.Helper()
	flags := make([]packet.SarFlag, len(segments))
	for i, seg := range segments {
		require.NotEmpty(t, seg)
		flags[i], _ = packet.DecodeHeader(seg[0])
	}
	return flags
}

func TestNewSegmenter(t *testing.T) {
	_, err := NewSegmenter(0)
	require.ErrorIs(t, err, ErrInvalidSegmentSize)
	_, err = NewSegmenter(-3)
	require.ErrorIs(t, err, ErrInvalidSegmentSize)

	s, err := NewSegmenter(1)
	require.NoError(t, err)
	require.Equal(t, 1, s.SegmentSize())
}

func TestSegmentSizeForMTU(t *testing.T) {
	size, err := SegmentSizeForMTU(DefaultMTU)
	require.NoError(t, err)
	require.Equal(t, 19, size)
	require.Equal(t, DefaultSegmentSize, size)

	size, err = SegmentSizeForMTU(247)
	require.NoError(t, err)
	require.Equal(t, 243, size)

	_, err = SegmentSizeForMTU(4)
	require.ErrorIs(t, err, ErrInvalidSegmentSize)
}

func TestSegmenter_BitExactExample(t *testing.T) {
	s, err := NewSegmenter(4)
	require.NoError(t, err)

	got := s.Split([]byte("ABCDEFGHI"), packet.PduNetwork)
	require.Equal(t, [][]byte{
		[]byte("\x40ABCD"),
		[]byte("\x80EFGH"),
		[]byte("\xC0I"),
	}, got)
}

func TestSegmenter_CountBoundaries(t *testing.T) {
	const size = 7
	s, err := NewSegmenter(size)
	require.NoError(t, err)

	tests := []struct {
		name      string
		length    int
		wantFlags []packet.SarFlag
		lastLen   int
	}{
		{"Empty", 0, []packet.SarFlag{packet.SarComplete}, 0},
		{"One", 1, []packet.SarFlag{packet.SarComplete}, 1},
		{"S", size, []packet.SarFlag{packet.SarComplete}, size},
		{"S+1", size + 1, []packet.SarFlag{packet.SarFirst, packet.SarLast}, 1},
		{"2S", 2 * size, []packet.SarFlag{packet.SarFirst, packet.SarLast}, size},
		{"2S+1", 2*size + 1, []packet.SarFlag{packet.SarFirst, packet.SarContinuation, packet.SarLast}, 1},
		{"5S", 5 * size, []packet.SarFlag{
			packet.SarFirst, packet.SarContinuation, packet.SarContinuation, packet.SarContinuation, packet.SarLast,
		}, size},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := s.Split(makePayload(tt.length), packet.PduProxyConfiguration)
			require.Equal(t, tt.wantFlags, flagsOf(t, segments))
			require.Len(t, segments, s.count(tt.length))

			for i, seg := range segments {
				_, typ := packet.DecodeHeader(seg[0])
				require.Equal(t, packet.PduProxyConfiguration, typ, "segment %d", i)
				if i < len(segments)-1 {
					require.Len(t, seg, size+packet.HeaderSize, "segment %d", i)
				}
			}
			require.Len(t, segments[len(segments)-1], tt.lastLen+packet.HeaderSize)
		})
	}
}

func TestSegmenter_EmptyPacket(t *testing.T) {
	s, err := NewSegmenter(DefaultSegmentSize)
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x00}}, s.Split(nil, packet.PduNetwork))
	require.Equal(t, [][]byte{{0x00}}, s.Split([]byte{}, packet.PduNetwork))
}

func TestSegmenter_Deterministic(t *testing.T) {
	s, err := NewSegmenter(5)
	require.NoError(t, err)

	data := makePayload(123)
	first := s.Split(data, packet.PduMeshBeacon)
	second := s.Split(data, packet.PduMeshBeacon)
	require.Equal(t, first, second)
}

func TestSegmenter_EachStopsOnError(t *testing.T) {
	s, err := NewSegmenter(2)
	require.NoError(t, err)

	var emitted int
	stop := ErrLinkClosed
	err = s.Each(makePayload(10), packet.PduNetwork, func(seg packet.Segment) error {
		emitted++
		if emitted == 2 {
			return stop
		}
		return nil
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 2, emitted)
}

func TestSegmenter_ConcatenatedPayloadsMatchInput(t *testing.T) {
	for size := 1; size <= 9; size++ {
		s, err := NewSegmenter(size)
		require.NoError(t, err)
		for n := 0; n <= 4*size+1; n++ {
			data := makePayload(n)
			var joined []byte
			for _, seg := range s.Split(data, packet.PduNetwork) {
				require.LessOrEqual(t, len(seg)-packet.HeaderSize, size)
				joined = append(joined, seg[packet.HeaderSize:]...)
			}
			require.True(t, bytes.Equal(data, joined), "size=%d n=%d", size, n)
		}
	}
}
