//go:build !wasm

package serial

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/Sun-Lab-NBB/ataraxis-transport-layer-pc/transport"
)

// NativePort wraps github.com/tarm/serial's blocking Port so it satisfies
// the local Port interface.
type NativePort struct {
	port *serial.Port
	cfg  *Config
}

// Open opens a native serial port using cfg.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("serial: config cannot be nil")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: failed to open port %s: %w", cfg.Device, err)
	}

	return &NativePort{port: port, cfg: cfg}, nil
}

func (p *NativePort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *NativePort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *NativePort) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

// Flush is a no-op: tarm/serial does not expose a buffered-output flush,
// and Write already blocks until the OS accepts the bytes.
func (p *NativePort) Flush() error { return nil }

// Stream adapts a blocking Port into the non-blocking transport.Stream the
// Transfer Engine expects, by running a background reader goroutine that
// drains the port into a byte queue. This mirrors the read-loop-plus-FIFO
// shape used to bridge a blocking serial port to a message parser that
// expects bytes to simply be "available".
type Stream struct {
	port Port

	mu    sync.Mutex
	queue []byte

	readErr error
	closed  chan struct{}
	done    chan struct{}
}

var _ transport.Stream = (*Stream)(nil)

// NewStream starts a background reader over port and returns a ready-to-use
// Stream. Close stops the reader and closes the underlying port.
func NewStream(port Port) *Stream {
	s := &Stream{
		port:   port,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.done)

	buf := make([]byte, 256)
	for {
		select {
		case <-s.closed:
			return
		default:
		}

		n, err := s.port.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.queue = append(s.queue, buf[:n]...)
			s.mu.Unlock()
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// TryReadByte implements transport.Stream.
func (s *Stream) TryReadByte() (byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, false
	}
	b := s.queue[0]
	s.queue = s.queue[1:]
	return b, true
}

// BytesAvailable implements transport.Stream.
func (s *Stream) BytesAvailable() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// WriteBytes implements transport.Stream, blocking until the port accepts
// every byte of buf.
func (s *Stream) WriteBytes(buf []byte) error {
	for len(buf) > 0 {
		n, err := s.port.Write(buf)
		if err != nil {
			return fmt.Errorf("serial: write failed: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

// Close stops the background reader and closes the underlying port.
func (s *Stream) Close() error {
	close(s.closed)
	<-s.done
	return s.port.Close()
}
