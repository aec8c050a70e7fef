package transport

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Sun-Lab-NBB/ataraxis-transport-layer-pc/cobs"
	"github.com/Sun-Lab-NBB/ataraxis-transport-layer-pc/crc"
)

func newCCITTFalse(t *testing.T, stream Stream, opts ...Option[uint16]) *TransportLayer[uint16] {
	t.Helper()
	tl, err := New[uint16](stream, 0x1021, 0xFFFF, 0, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tl
}

// asInboundFrame drops the payload-size byte that Send writes right after
// the start byte: outbound frames carry it, inbound frames don't (the
// asymmetry is intentional, see DESIGN.md). Tests that want to feed one
// engine's Send output into another engine's Receive need to translate
// between the two wire shapes first.
func asInboundFrame(outbound []byte) []byte {
	inbound := make([]byte, 0, len(outbound)-1)
	inbound = append(inbound, outbound[0])
	inbound = append(inbound, outbound[2:]...)
	return inbound
}

func TestSendFullFrame(t *testing.T) {
	stream := NewMockStream()
	tl := newCCITTFalse(t, stream)

	payload := []byte{1, 2, 3, 0, 0, 6, 0, 8, 0, 0}
	if _, err := tl.WritePayload(payload, 0); err != nil {
		t.Fatalf("WritePayload failed: %v", err)
	}

	if err := tl.Send(); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	writes := stream.Writes()
	if len(writes) != 2 {
		t.Fatalf("expected 2 stream writes (preamble, frame), got %d", len(writes))
	}

	wantPreamble := []byte{129, 10}
	if !bytes.Equal(writes[0], wantPreamble) {
		t.Fatalf("preamble = %v, want %v", writes[0], wantPreamble)
	}

	wantPacket := []byte{4, 1, 2, 3, 1, 2, 6, 2, 8, 1, 1, 0}
	frame := writes[1]
	if len(frame) != len(wantPacket)+2 {
		t.Fatalf("frame length = %d, want %d", len(frame), len(wantPacket)+2)
	}
	if !bytes.Equal(frame[:len(wantPacket)], wantPacket) {
		t.Fatalf("encoded packet = %v, want %v", frame[:len(wantPacket)], wantPacket)
	}

	engine := crc.New[uint16](0x1021, 0xFFFF, 0)
	selfCheck, err := engine.Compute(frame, 0, len(frame))
	if err != nil {
		t.Fatalf("self-check Compute failed: %v", err)
	}
	if selfCheck != 0 {
		t.Fatalf("CRC self-check = 0x%04X, want 0", selfCheck)
	}

	if tl.BytesInTx() != 0 {
		t.Fatalf("BytesInTx after Send = %d, want 0", tl.BytesInTx())
	}
}

func TestSendThenReceiveRoundTrip(t *testing.T) {
	stream := NewMockStream()
	sender := newCCITTFalse(t, stream)
	receiver := newCCITTFalse(t, stream)

	payload := []byte{10, 0, 0, 20, 0, 0, 0, 143, 12, 54}
	if _, err := sender.WritePayload(payload, 0); err != nil {
		t.Fatalf("WritePayload failed: %v", err)
	}
	if err := sender.Send(); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	stream.Feed(asInboundFrame(stream.Written()))

	if err := receiver.Receive(); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if receiver.BytesInRx() != len(payload) {
		t.Fatalf("BytesInRx = %d, want %d", receiver.BytesInRx(), len(payload))
	}

	got := make([]byte, len(payload))
	if _, err := receiver.ReadPayload(got, 0); err != nil {
		t.Fatalf("ReadPayload failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip payload = %v, want %v", got, payload)
	}
}

// TestReceiveSkipsLeadingNoise checks that bytes preceding the start byte
// are discarded rather than confusing the scanner.
func TestReceiveSkipsLeadingNoise(t *testing.T) {
	stream := NewMockStream()
	sender := newCCITTFalse(t, stream)
	receiver := newCCITTFalse(t, stream)

	payload := []byte{9, 9, 9}
	if _, err := sender.WritePayload(payload, 0); err != nil {
		t.Fatalf("WritePayload failed: %v", err)
	}
	if err := sender.Send(); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	frame := asInboundFrame(stream.Written())
	stream.Reset()

	noise := []byte{1, 2, 3, 200, 0, 77}
	stream.Feed(noise)
	stream.Feed(frame)

	if err := receiver.Receive(); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	got := make([]byte, len(payload))
	if _, err := receiver.ReadPayload(got, 0); err != nil {
		t.Fatalf("ReadPayload failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload after noise = %v, want %v", got, payload)
	}
}

func TestReceiveNoBytesToParse(t *testing.T) {
	stream := NewMockStream()
	receiver := newCCITTFalse(t, stream)

	if err := receiver.Receive(); !errors.Is(err, ErrNoBytesToParse) {
		t.Fatalf("Receive on empty stream = %v, want ErrNoBytesToParse", err)
	}
}

func TestReceiveStartByteNotFoundWhenAllowed(t *testing.T) {
	stream := NewMockStream()
	receiver := newCCITTFalse(t, stream, WithAllowStartByteErrors[uint16](true))
	stream.Feed([]byte{1, 2, 3})

	if err := receiver.Receive(); !errors.Is(err, ErrStartByteNotFound) {
		t.Fatalf("Receive = %v, want ErrStartByteNotFound", err)
	}
}

// TestReceiveTimeout seeds a start byte followed by a packet that stalls
// forever: the stream never offers the delimiter, so the per-byte timeout
// must fire well before a real caller would give up.
func TestReceiveTimeout(t *testing.T) {
	stream := NewMockStream()
	receiver := newCCITTFalse(t, stream, WithTimeout[uint16](2*time.Millisecond))
	stream.Feed([]byte{129, 1, 2, 3})

	start := time.Now()
	err := receiver.Receive()
	elapsed := time.Since(start)

	if !errors.Is(err, ErrPacketTimeout) {
		t.Fatalf("Receive = %v, want ErrPacketTimeout", err)
	}
	if receiver.BytesInRx() != 0 {
		t.Fatalf("BytesInRx after timeout = %d, want 0", receiver.BytesInRx())
	}
	if elapsed > time.Second {
		t.Fatalf("timeout took %v, expected it to fire quickly", elapsed)
	}
}

func TestReceivePacketOutOfBuffer(t *testing.T) {
	stream := NewMockStream()
	receiver := newCCITTFalse(t, stream, WithMaxRxPayload[uint16](4))

	frame := []byte{129}
	frame = append(frame, bytes.Repeat([]byte{1}, 20)...)
	stream.Feed(frame)

	if err := receiver.Receive(); !errors.Is(err, ErrPacketOutOfBuffer) {
		t.Fatalf("Receive = %v, want ErrPacketOutOfBuffer", err)
	}
}

// TestSingleByteCorruptionNeverSucceedsSilently flips every byte of a valid
// frame one at a time and confirms Receive either reports a recognized
// integrity error or produces the original payload; it must never silently
// return a different payload as success.
func TestSingleByteCorruptionNeverSucceedsSilently(t *testing.T) {
	payload := []byte{5, 0, 9, 200, 0, 1, 2, 3, 0, 77}

	sendStream := NewMockStream()
	sender := newCCITTFalse(t, sendStream)
	if _, err := sender.WritePayload(payload, 0); err != nil {
		t.Fatalf("WritePayload failed: %v", err)
	}
	if err := sender.Send(); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	original := asInboundFrame(sendStream.Written())

	for i := range original {
		for flip := 1; flip < 256; flip *= 2 {
			corrupt := append([]byte(nil), original...)
			corrupt[i] ^= byte(flip)
			if bytes.Equal(corrupt, original) {
				continue
			}

			recvStream := NewMockStream()
			recvStream.Feed(corrupt)
			receiver := newCCITTFalse(t, recvStream)

			err := receiver.Receive()
			if err == nil {
				got := make([]byte, receiver.BytesInRx())
				if _, rerr := receiver.ReadPayload(got, 0); rerr != nil {
					t.Fatalf("byte %d flip %d: ReadPayload failed after apparently-successful Receive: %v", i, flip, rerr)
				}
				if !bytes.Equal(got, payload) {
					t.Fatalf("byte %d flip %d: Receive silently accepted a corrupted frame", i, flip)
				}
				continue
			}

			switch {
			case errors.Is(err, ErrCRCCheckFailed),
				errors.Is(err, cobs.ErrDelimiterTooEarly),
				errors.Is(err, cobs.ErrDelimiterNotFound),
				errors.Is(err, ErrPacketOutOfBuffer),
				errors.Is(err, ErrStartByteNotFound),
				errors.Is(err, ErrNoBytesToParse):
				// expected outcome of corruption
			default:
				t.Fatalf("byte %d flip %d: unexpected error %v", i, flip, err)
			}
		}
	}
}

func TestWritePayloadTooSmall(t *testing.T) {
	stream := NewMockStream()
	tl := newCCITTFalse(t, stream, WithMaxTxPayload[uint16](4))

	if _, err := tl.WritePayload([]byte{1, 2, 3, 4, 5}, 0); !errors.Is(err, ErrWritePayloadTooSmall) {
		t.Fatalf("WritePayload = %v, want ErrWritePayloadTooSmall", err)
	}
}

func TestReadPayloadTooSmall(t *testing.T) {
	stream := NewMockStream()
	tl := newCCITTFalse(t, stream)

	dst := make([]byte, 4)
	if _, err := tl.ReadPayload(dst, 0); !errors.Is(err, ErrReadPayloadTooSmall) {
		t.Fatalf("ReadPayload on empty rx = %v, want ErrReadPayloadTooSmall", err)
	}
}

func TestResetTxAndRx(t *testing.T) {
	stream := NewMockStream()
	tl := newCCITTFalse(t, stream)

	if _, err := tl.WritePayload([]byte{1, 2, 3}, 0); err != nil {
		t.Fatalf("WritePayload failed: %v", err)
	}
	tl.ResetTx()
	if tl.BytesInTx() != 0 {
		t.Fatalf("BytesInTx after ResetTx = %d, want 0", tl.BytesInTx())
	}

	tl.ResetRx()
	if tl.BytesInRx() != 0 {
		t.Fatalf("BytesInRx after ResetRx = %d, want 0", tl.BytesInRx())
	}
}

func TestInvalidMaxPayloadConfig(t *testing.T) {
	stream := NewMockStream()
	if _, err := New[uint16](stream, 0x1021, 0xFFFF, 0, WithMaxTxPayload[uint16](0)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("New with max tx payload 0 = %v, want ErrInvalidConfig", err)
	}
	if _, err := New[uint16](stream, 0x1021, 0xFFFF, 0, WithMaxRxPayload[uint16](300)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("New with max rx payload 300 = %v, want ErrInvalidConfig", err)
	}
}
