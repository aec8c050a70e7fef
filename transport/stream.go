package transport

// Stream is the abstract byte channel the Transfer Engine reads from and
// writes to. It models a non-blocking serial port: TryReadByte never
// blocks waiting for data, BytesAvailable is a cheap probe, and WriteBytes
// may block until the transport has accepted every byte.
//
// No particular buffering behavior is assumed beyond these three
// operations; implementations may deliver bytes one at a time or in
// bursts. A Stream is exclusively owned by one Transfer Engine for the
// duration of any Send/Receive call.
type Stream interface {
	// TryReadByte returns the next available byte and true, or false if
	// no byte is currently available. It never blocks.
	TryReadByte() (byte, bool)

	// BytesAvailable returns the number of bytes currently buffered and
	// ready to be read without blocking.
	BytesAvailable() int

	// WriteBytes writes buf to the underlying channel, blocking until the
	// transport has accepted every byte or an error occurs.
	WriteBytes(buf []byte) error
}
