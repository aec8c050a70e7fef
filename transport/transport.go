// Package transport implements the top-level transfer engine: the state
// machine that owns the tx/rx staging buffers and drives the COBS codec and
// CRC engine to send and receive framed packets over a Stream.
package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/Sun-Lab-NBB/ataraxis-transport-layer-pc/cobs"
	"github.com/Sun-Lab-NBB/ataraxis-transport-layer-pc/crc"
	"github.com/Sun-Lab-NBB/ataraxis-transport-layer-pc/status"
)

var (
	ErrWritePayloadTooSmall = status.New(status.TransferWritePayloadTooSmall, "transport: write exceeds configured max tx payload size")
	ErrReadPayloadTooSmall  = status.New(status.TransferReadPayloadTooSmall, "transport: read exceeds the rx filled region")
	ErrNoBytesToParse       = status.New(status.TransferNoBytesToParse, "transport: stream had no bytes to parse")
	ErrStartByteNotFound    = status.New(status.TransferStartByteNotFound, "transport: start byte not found before the stream drained")
	ErrPacketTimeout        = status.New(status.TransferPacketTimeout, "transport: timed out waiting for the next packet byte")
	ErrPacketOutOfBuffer    = status.New(status.TransferPacketOutOfBuffer, "transport: packet exceeded rx buffer capacity before a delimiter was found")
	ErrPostambleTimeout     = status.New(status.TransferPostambleTimeout, "transport: timed out waiting for postamble bytes")
	ErrCRCCheckFailed       = status.New(status.TransferCRCCheckFailed, "transport: CRC self-check failed, frame is corrupted")
	ErrInvalidConfig        = status.New(status.TransferInvalidConfig, "transport: max payload size must be between 1 and 254 bytes")
)

// config holds the construction-time, immutable settings of a
// TransportLayer. It is built from defaults and overlaid with any Option
// values passed to New.
type config[T crc.Value] struct {
	startByte            byte
	delimiterByte        byte
	timeout              time.Duration
	allowStartByteErrors bool
	maxTxPayload         int
	maxRxPayload         int
	logger               *zap.SugaredLogger
}

func defaultConfig[T crc.Value]() config[T] {
	return config[T]{
		startByte:            129,
		delimiterByte:        0,
		timeout:              20 * time.Millisecond,
		allowStartByteErrors: false,
		maxTxPayload:         cobs.MaxPayloadSize,
		maxRxPayload:         cobs.MaxPayloadSize,
		logger:               zap.NewNop().Sugar(),
	}
}

// Option overlays a single setting onto the default configuration. Follows
// the functional-options shape used throughout the retrieval pack (e.g.
// grpc's DialOption) rather than a partially-filled struct.
type Option[T crc.Value] func(*config[T])

// WithStartByte overrides the default start byte (129).
func WithStartByte[T crc.Value](b byte) Option[T] {
	return func(c *config[T]) { c.startByte = b }
}

// WithDelimiterByte overrides the default delimiter byte (0).
func WithDelimiterByte[T crc.Value](b byte) Option[T] {
	return func(c *config[T]) { c.delimiterByte = b }
}

// WithTimeout overrides the default per-byte read timeout (20ms).
func WithTimeout[T crc.Value](d time.Duration) Option[T] {
	return func(c *config[T]) { c.timeout = d }
}

// WithAllowStartByteErrors controls whether a drained stream during start
// byte scanning is reported as StartByteNotFound (true) rather than the
// default NoBytesToParse (false).
func WithAllowStartByteErrors[T crc.Value](allow bool) Option[T] {
	return func(c *config[T]) { c.allowStartByteErrors = allow }
}

// WithMaxTxPayload overrides the default max tx payload size (254 bytes).
func WithMaxTxPayload[T crc.Value](n int) Option[T] {
	return func(c *config[T]) { c.maxTxPayload = n }
}

// WithMaxRxPayload overrides the default max rx payload size (254 bytes).
func WithMaxRxPayload[T crc.Value](n int) Option[T] {
	return func(c *config[T]) { c.maxRxPayload = n }
}

// WithLogger attaches a logger for state-transition and failure diagnostics.
// A nil logger is ignored; without this option the engine logs nowhere.
func WithLogger[T crc.Value](l *zap.SugaredLogger) Option[T] {
	return func(c *config[T]) {
		if l != nil {
			c.logger = l
		}
	}
}

// TransportLayer is the transfer engine: it owns the tx/rx staging buffers
// and drives the COBS codec and CRC engine to turn payloads into framed
// packets and back. T fixes the CRC register width (uint8, uint16, or
// uint32) for the lifetime of the instance.
type TransportLayer[T crc.Value] struct {
	stream Stream
	crc    *crc.Engine[T]
	logger *zap.SugaredLogger

	startByte            byte
	delimiterByte        byte
	timeout              time.Duration
	allowStartByteErrors bool

	maxTxPayload int
	maxRxPayload int

	tx       []byte
	txFilled int

	rx       []byte
	rxFilled int
}

// New builds a TransportLayer bound to stream, using a CRC engine built
// from the given polynomial, initial value, and final XOR. Typical values
// for CRC-16/CCITT-FALSE are polynomial=0x1021, initial=0xFFFF, finalXOR=0.
func New[T crc.Value](stream Stream, polynomial, initial, finalXOR T, opts ...Option[T]) (*TransportLayer[T], error) {
	cfg := defaultConfig[T]()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.maxTxPayload < cobs.MinPayloadSize || cfg.maxTxPayload > cobs.MaxPayloadSize {
		return nil, ErrInvalidConfig
	}
	if cfg.maxRxPayload < cobs.MinPayloadSize || cfg.maxRxPayload > cobs.MaxPayloadSize {
		return nil, ErrInvalidConfig
	}

	engine := crc.New(polynomial, initial, finalXOR)
	w := engine.Width()

	t := &TransportLayer[T]{
		stream:               stream,
		crc:                  engine,
		logger:               cfg.logger,
		startByte:            cfg.startByte,
		delimiterByte:        cfg.delimiterByte,
		timeout:              cfg.timeout,
		allowStartByteErrors: cfg.allowStartByteErrors,
		maxTxPayload:         cfg.maxTxPayload,
		maxRxPayload:         cfg.maxRxPayload,
		tx:                   make([]byte, cfg.maxTxPayload+2+w),
		rx:                   make([]byte, cfg.maxRxPayload+2+w),
	}
	return t, nil
}

// MaxTxPayload returns the configured tx payload capacity in bytes.
func (t *TransportLayer[T]) MaxTxPayload() int { return t.maxTxPayload }

// MaxRxPayload returns the configured rx payload capacity in bytes.
func (t *TransportLayer[T]) MaxRxPayload() int { return t.maxRxPayload }

// BytesInTx returns the number of payload bytes currently staged for send.
func (t *TransportLayer[T]) BytesInTx() int { return t.txFilled }

// BytesInRx returns the number of payload bytes available from the most
// recent successful Receive.
func (t *TransportLayer[T]) BytesInRx() int { return t.rxFilled }

// WritePayload copies src into the tx payload region starting at the given
// logical payload offset, growing txFilled to cover the write if needed.
// It returns the next free offset.
func (t *TransportLayer[T]) WritePayload(src []byte, offset int) (int, error) {
	length := len(src)
	if offset < 0 || offset+length > t.maxTxPayload {
		return 0, ErrWritePayloadTooSmall
	}
	copy(t.tx[offset+1:offset+1+length], src)
	if next := offset + length; next > t.txFilled {
		t.txFilled = next
	}
	return offset + length, nil
}

// ReadPayload copies length(dst) bytes from the rx payload region starting
// at offset into dst. It never reads past the region filled by the last
// successful Receive.
func (t *TransportLayer[T]) ReadPayload(dst []byte, offset int) (int, error) {
	length := len(dst)
	if offset < 0 || offset+length > t.rxFilled {
		return 0, ErrReadPayloadTooSmall
	}
	copy(dst, t.rx[offset+1:offset+1+length])
	return offset + length, nil
}

// ResetTx zeroes the tx byte tracker and the overhead placeholder.
func (t *TransportLayer[T]) ResetTx() {
	t.txFilled = 0
	t.tx[0] = 0
}

// ResetRx zeroes the rx byte tracker and the overhead placeholder.
func (t *TransportLayer[T]) ResetRx() {
	t.rxFilled = 0
	t.rx[0] = 0
}

// Send COBS-encodes the staged tx payload, appends its CRC, and writes the
// start-byte/length preamble followed by the packet and CRC to the stream.
// The tx buffer is only reset once every step has succeeded; a failing
// sub-step leaves the buffer untouched and nothing is written to the
// stream.
func (t *TransportLayer[T]) Send() error {
	payloadSize := t.txFilled

	packetLen, err := cobs.Encode(t.tx, payloadSize, t.delimiterByte)
	if err != nil {
		t.logger.Warnw("send: cobs encode failed", "error", err)
		return err
	}

	checksum, err := t.crc.Compute(t.tx, 0, packetLen)
	if err != nil {
		t.logger.Warnw("send: crc compute failed", "error", err)
		return err
	}

	frameLen, err := t.crc.Append(t.tx, packetLen, checksum)
	if err != nil {
		t.logger.Warnw("send: crc append failed", "error", err)
		return err
	}

	preamble := [2]byte{t.startByte, byte(payloadSize)}
	if err := t.stream.WriteBytes(preamble[:]); err != nil {
		return err
	}
	if err := t.stream.WriteBytes(t.tx[:frameLen]); err != nil {
		return err
	}

	t.logger.Debugw("send: frame written", "payload_size", payloadSize, "frame_len", frameLen)
	t.ResetTx()
	return nil
}

// Receive drains the stream looking for a start byte, then reads a packet
// and its CRC postamble, validates the CRC, and COBS-decodes the result
// into the rx payload region. Any rx contents from a prior call are
// discarded on entry regardless of outcome.
func (t *TransportLayer[T]) Receive() error {
	t.ResetRx()

	if err := t.scanForStart(); err != nil {
		return err
	}
	t.logger.Debugw("receive: start byte found, scanning for packet")

	packetLen, err := t.receivePacket()
	if err != nil {
		t.logger.Warnw("receive: packet read failed", "error", err)
		return err
	}

	frameLen, err := t.receivePostamble(packetLen)
	if err != nil {
		t.logger.Warnw("receive: postamble read failed", "error", err)
		return err
	}

	if err := t.validate(frameLen); err != nil {
		t.logger.Warnw("receive: crc check failed")
		return err
	}

	payloadLen, err := cobs.Decode(t.rx, packetLen, t.delimiterByte)
	if err != nil {
		t.logger.Warnw("receive: cobs decode failed", "error", err)
		return err
	}

	t.rxFilled = payloadLen
	t.logger.Debugw("receive: payload decoded", "payload_size", payloadLen)
	return nil
}

// scanForStart discards bytes from the stream until the configured start
// byte is read, or the stream has no more bytes to offer.
func (t *TransportLayer[T]) scanForStart() error {
	for {
		b, ok := t.stream.TryReadByte()
		if !ok {
			if t.allowStartByteErrors {
				return ErrStartByteNotFound
			}
			return ErrNoBytesToParse
		}
		if b == t.startByte {
			return nil
		}
	}
}

// receivePacket reads bytes into rx, starting at index 0, until it sees
// the delimiter byte or runs out of buffer space. The overhead byte at
// rx[0] is exempt from the delimiter check: without this, an overhead value
// that happens to equal the delimiter would be mistaken for packet end.
func (t *TransportLayer[T]) receivePacket() (int, error) {
	limit := len(t.rx) - t.crc.Width()
	bytesRead := 0

	for bytesRead < limit {
		b, err := t.readByteWithTimeout(ErrPacketTimeout)
		if err != nil {
			return 0, err
		}

		t.rx[bytesRead] = b
		bytesRead++

		if bytesRead > 1 && b == t.delimiterByte {
			return bytesRead, nil
		}
	}

	return 0, ErrPacketOutOfBuffer
}

// receivePostamble reads the CRC width's worth of bytes immediately
// following the packet read by receivePacket.
func (t *TransportLayer[T]) receivePostamble(packetLen int) (int, error) {
	bytesRead := packetLen
	width := t.crc.Width()

	for i := 0; i < width; i++ {
		b, err := t.readByteWithTimeout(ErrPostambleTimeout)
		if err != nil {
			return 0, err
		}
		t.rx[bytesRead] = b
		bytesRead++
	}

	return bytesRead, nil
}

// readByteWithTimeout spins on TryReadByte until a byte arrives or timeout
// elapses since the call started, in which case timeoutErr is returned.
func (t *TransportLayer[T]) readByteWithTimeout(timeoutErr error) (byte, error) {
	deadline := time.Now().Add(t.timeout)
	for {
		if b, ok := t.stream.TryReadByte(); ok {
			return b, nil
		}
		if time.Now().After(deadline) {
			return 0, timeoutErr
		}
	}
}

// validate computes the CRC self-check over rx[0:frameLen] and confirms it
// is zero.
func (t *TransportLayer[T]) validate(frameLen int) error {
	result, err := t.crc.Compute(t.rx, 0, frameLen)
	if err != nil {
		return err
	}
	if result != 0 {
		return ErrCRCCheckFailed
	}
	return nil
}
