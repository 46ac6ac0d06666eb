package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dpsmeter/internal/core"
)

const testPort uint16 = 15011

func ipPacket(t *testing.T, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(192, 168, 1, 2),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     1000,
		PSH:     true,
		ACK:     true,
		Window:  1024,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func sllFrame(packetType, addrLen, proto uint16, ip []byte) []byte {
	h := make([]byte, sllHeaderLen, sllHeaderLen+len(ip))
	binary.BigEndian.PutUint16(h[0:2], packetType)
	binary.BigEndian.PutUint16(h[2:4], 1)
	binary.BigEndian.PutUint16(h[4:6], addrLen)
	copy(h[6:12], []byte{0, 1, 2, 3, 4, 5})
	binary.BigEndian.PutUint16(h[14:16], proto)
	return append(h, ip...)
}

func ethFrame(t *testing.T, etherType layers.EthernetType, ip []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: etherType,
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload(ip)))
	return buf.Bytes()
}

func TestDecapsulateSLL(t *testing.T) {
	ip := ipPacket(t, testPort, 50000, []byte("hello"))

	got, lt, err := Decapsulate(layers.LinkTypeLinuxSLL, sllFrame(0, 6, 0x0800, ip))
	require.NoError(t, err)
	assert.Equal(t, core.LinkLinuxSLL, lt)
	assert.Equal(t, ip, got)

	tests := []struct {
		name   string
		frame  []byte
		reason string
		want   error
	}{
		{"outgoing", sllFrame(4, 6, 0x0800, ip), dropNotHost, core.ErrBadLinkHeader},
		{"bad address length", sllFrame(0, 8, 0x0800, ip), dropLinkHeader, core.ErrBadLinkHeader},
		{"huge address length", sllFrame(0, 300, 0x0800, ip), dropLinkHeader, core.ErrBadLinkHeader},
		{"ipv6", sllFrame(0, 6, 0x86DD, ip), dropNotIPv4, core.ErrUnsupportedProto},
		{"truncated", sllFrame(0, 6, 0x0800, nil)[:10], dropLinkHeader, core.ErrBadLinkHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decapsulate(layers.LinkTypeLinuxSLL, tt.frame)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, tt.reason, dropReason(err))
		})
	}
}

func TestDecapsulateEthernet(t *testing.T) {
	// long enough that Ethernet serialization adds no trailer padding
	ip := ipPacket(t, testPort, 50000, []byte("hello world"))

	got, lt, err := Decapsulate(layers.LinkTypeEthernet, ethFrame(t, layers.EthernetTypeIPv4, ip))
	require.NoError(t, err)
	assert.Equal(t, core.LinkEthernet, lt)
	assert.Equal(t, ip, got)

	_, _, err = Decapsulate(layers.LinkTypeEthernet, ethFrame(t, layers.EthernetTypeARP, ip))
	assert.True(t, errors.Is(err, core.ErrUnsupportedProto))

	_, _, err = Decapsulate(layers.LinkTypeEthernet, []byte{1, 2, 3})
	assert.True(t, errors.Is(err, core.ErrBadLinkHeader))
}

func TestDecapsulateRawAndUnknown(t *testing.T) {
	ip := ipPacket(t, testPort, 50000, nil)

	got, lt, err := Decapsulate(layers.LinkTypeRaw, ip)
	require.NoError(t, err)
	assert.Equal(t, core.LinkRawIPv4, lt)
	assert.Equal(t, ip, got)

	_, _, err = Decapsulate(layers.LinkTypeRaw, nil)
	assert.True(t, errors.Is(err, core.ErrPacketTooShort))

	_, _, err = Decapsulate(layers.LinkTypeIEEE802_11, ip)
	assert.Equal(t, dropLinkType, dropReason(err))
}

func TestFromPort(t *testing.T) {
	assert.True(t, fromPort(ipPacket(t, testPort, 50000, nil), testPort))
	assert.False(t, fromPort(ipPacket(t, 50000, testPort, nil), testPort))
	assert.True(t, fromPort([]byte{0x45}, testPort), "undecodable packets are left to the reassembler")
}

func writePcap(t *testing.T, lt layers.LinkType, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, lt))
	ts := time.Unix(1700000000, 0)
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	return path
}

func collect(t *testing.T, src Source) []core.Frame {
	t.Helper()
	out := make(chan core.Frame)
	errc := make(chan error, 1)
	go func() {
		errc <- src.Serve(context.Background(), out)
		close(out)
	}()

	var frames []core.Frame
	for f := range out {
		frames = append(frames, f)
	}
	require.NoError(t, <-errc)
	return frames
}

func TestFileSourceReplay(t *testing.T) {
	in1 := ipPacket(t, testPort, 50000, []byte("one"))
	in2 := ipPacket(t, testPort, 50000, []byte("two"))
	outbound := ipPacket(t, 50000, testPort, []byte("req"))

	path := writePcap(t, layers.LinkTypeLinuxSLL,
		sllFrame(0, 6, 0x0800, in1),
		sllFrame(4, 6, 0x0800, outbound),
		sllFrame(0, 6, 0x0800, outbound),
		sllFrame(0, 6, 0x0800, in2),
	)

	opts := DefaultOptions()
	opts.Backend = TypeFile
	opts.File = path
	src, err := New(opts)
	require.NoError(t, err)
	assert.Equal(t, TypeFile, src.Type())
	require.NoError(t, src.Open(testPort))
	defer src.Close()

	frames := collect(t, src)
	require.Len(t, frames, 2)
	assert.Equal(t, in1, frames[0].Data)
	assert.Equal(t, in2, frames[1].Data)
	assert.Equal(t, core.LinkLinuxSLL, frames[0].Link)
	assert.Equal(t, uint32(len(in1)+sllHeaderLen), frames[0].CaptureLen)
	assert.True(t, frames[0].Timestamp.Before(frames[1].Timestamp))
}

func TestFileSourceDumpRoundTrip(t *testing.T) {
	in := ipPacket(t, testPort, 50000, []byte("payload"))
	path := writePcap(t, layers.LinkTypeEthernet, ethFrame(t, layers.EthernetTypeIPv4, in))
	dumpPath := filepath.Join(t.TempDir(), "dump.pcap")

	opts := DefaultOptions()
	opts.Backend = TypeFile
	opts.File = path
	opts.DumpFile = dumpPath
	src, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, src.Open(testPort))
	require.Len(t, collect(t, src), 1)
	require.NoError(t, src.Close())

	opts.File = dumpPath
	opts.DumpFile = ""
	replay, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, replay.Open(testPort))
	defer replay.Close()

	frames := collect(t, replay)
	require.Len(t, frames, 1)
	assert.Equal(t, in, frames[0].Data)
	assert.Equal(t, core.LinkRawIPv4, frames[0].Link)
}

func TestFileSourceCancel(t *testing.T) {
	in := ipPacket(t, testPort, 50000, []byte("x"))
	path := writePcap(t, layers.LinkTypeRaw, in, in, in)

	opts := DefaultOptions()
	opts.Backend = TypeFile
	opts.File = path
	src, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, src.Open(testPort))
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan core.Frame)
	done := make(chan error, 1)
	go func() { done <- src.Serve(ctx, out) }()

	<-out
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeBeforeOpen(t *testing.T) {
	opts := DefaultOptions()
	opts.Backend = TypeFile
	opts.File = "unused.pcap"
	src, err := New(opts)
	require.NoError(t, err)
	err = src.Serve(context.Background(), make(chan core.Frame))
	assert.True(t, errors.Is(err, core.ErrCaptureNotOpen))
}

func TestOpenMissingFile(t *testing.T) {
	opts := DefaultOptions()
	opts.Backend = TypeFile
	opts.File = filepath.Join(t.TempDir(), "missing.pcap")
	src, err := New(opts)
	require.NoError(t, err)
	assert.Error(t, src.Open(testPort))
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Port = 0
	_, err := New(opts)
	assert.Error(t, err)

	_, err = ParseType("windivert")
	assert.Error(t, err)

	typ, err := ParseType(" AF_PACKET ")
	require.NoError(t, err)
	assert.Equal(t, TypeAFPacket, typ)
}
