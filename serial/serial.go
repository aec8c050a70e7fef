// Package serial provides the default, concrete Stream implementation used
// to drive a TransportLayer over a real USB CDC or UART device.
package serial

import "io"

// Port is the minimal capability a concrete serial backend must provide.
// It mirrors io.ReadWriteCloser plus an explicit Flush, so alternate
// backends (mock ports, WebSerial under wasm builds) can satisfy it without
// depending on any particular driver library.
type Port interface {
	io.ReadWriteCloser

	// Flush discards any buffered, not-yet-transmitted output.
	Flush() error
}

// Config holds the settings needed to open a native serial port.
type Config struct {
	// Device is the OS path or name of the serial device (e.g.
	// "/dev/ttyACM0", "COM3").
	Device string

	// Baud is the requested baud rate. USB CDC devices generally ignore
	// this value but it must still be supplied.
	Baud int

	// ReadTimeout bounds how long a single underlying Read call may block
	// waiting for data before returning with whatever it has (possibly
	// nothing). It is independent of the Transfer Engine's own per-byte
	// timeout.
	ReadTimeout int
}

// DefaultConfig returns a Config for device with reasonable defaults for a
// point-to-point framed link: 115200 baud, a 50ms read timeout.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 50,
	}
}
