// Command tlayer-host opens a serial port and drives the framed packet
// engine interactively: a line of byte values is written as a payload and
// sent, and the "recv" command parses one frame from the bytes received so
// far and prints its payload. It exists to demonstrate the library
// end-to-end against real hardware, not as part of the library itself.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Sun-Lab-NBB/ataraxis-transport-layer-pc/serial"
	"github.com/Sun-Lab-NBB/ataraxis-transport-layer-pc/transport"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate")
	verbose = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	fmt.Println("ataraxis-transport-layer-pc host demo")
	fmt.Println("======================================")

	logger := zap.NewNop().Sugar()
	if *verbose {
		z, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to build logger: %v\n", err)
			os.Exit(1)
		}
		logger = z.Sugar()
	}

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Opening %s at %d baud...\n", *device, *baud)
	port, err := serial.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open port: %v\n", err)
		os.Exit(1)
	}
	stream := serial.NewStream(port)
	defer stream.Close()

	tl, err := transport.New[uint16](stream, 0x1021, 0xFFFF, 0, transport.WithLogger[uint16](logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to build transport layer: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Connected. Enter space-separated byte values to send, 'recv' to wait for a frame, or 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return
		case "recv":
			if err := doReceive(tl); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		default:
			if err := doSend(tl, line); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
}

func doSend(tl *transport.TransportLayer[uint16], line string) error {
	fields := strings.Fields(line)
	payload := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return fmt.Errorf("invalid byte value %q: %w", f, err)
		}
		payload = append(payload, byte(v))
	}

	if _, err := tl.WritePayload(payload, 0); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if err := tl.Send(); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	fmt.Printf("Sent %d-byte payload: %v\n", len(payload), payload)
	return nil
}

func doReceive(tl *transport.TransportLayer[uint16]) error {
	fmt.Println("Waiting for a frame...")
	if err := tl.Receive(); err != nil {
		return fmt.Errorf("receive: %w", err)
	}

	got := make([]byte, tl.BytesInRx())
	if _, err := tl.ReadPayload(got, 0); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	fmt.Printf("Received %d-byte payload: %v\n", len(got), got)
	return nil
}
