// signerd is the device-side daemon: it accepts one host connection at a
// time over the configured transport and runs the Framed Codec &
// Dispatcher (C5) cooperative state machine against it (spec.md §4.5,
// §5). On real hardware this loop runs on the microcontroller against a
// USB-CDC link; here it runs against a TCP listener so the whole stack
// can be exercised without hardware.
package main

import (
	"errors"
	"flag"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/cardano-embedded/signer/internal/display"
	"github.com/cardano-embedded/signer/internal/protocol"
	"github.com/cardano-embedded/signer/internal/session"
)

// pollDeadline bounds how long a single Read/Write may block before the
// dispatcher treats it as backpressure (spec.md §5 "Suspension points":
// the real loop yields to a USB poll; here it yields to the next
// Dispatcher.Poll call instead).
const pollDeadline = 10 * time.Millisecond

// connTransport adapts a net.Conn, which blocks, into the non-blocking
// protocol.Transport the dispatcher expects, by bounding every I/O call
// with a short deadline and translating its timeout into ErrWouldBlock.
type connTransport struct {
	conn net.Conn
}

func (t *connTransport) Read(p []byte) (int, error) {
	t.conn.SetReadDeadline(time.Now().Add(pollDeadline))
	n, err := t.conn.Read(p)
	if isTimeout(err) {
		if n > 0 {
			return n, nil
		}
		return 0, protocol.ErrWouldBlock
	}
	return n, err
}

func (t *connTransport) Write(p []byte) (int, error) {
	t.conn.SetWriteDeadline(time.Now().Add(pollDeadline))
	n, err := t.conn.Write(p)
	if isTimeout(err) {
		if n > 0 {
			return n, nil
		}
		return 0, protocol.ErrWouldBlock
	}
	return n, err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func main() {
	configPath := flag.String("config", "signerd.json", "path to the device config file")
	listenOverride := flag.String("listen", "", "override the config's device_port with a TCP address")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}
	if *listenOverride != "" {
		cfg.DevicePort = *listenOverride
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, closeLog, err := NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer closeLog()

	protocol.MaxBody = cfg.MaxBodyBytes

	listener, err := net.Listen("tcp", cfg.DevicePort)
	if err != nil {
		logger.Fatal().Err(err).Str("address", cfg.DevicePort).Msg("failed to listen")
	}
	logger.Info().Str("address", cfg.DevicePort).Msg("signerd listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Error().Err(err).Msg("accept failed")
			continue
		}
		logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("host connected")
		serve(conn, logger)
	}
}

func serve(conn net.Conn, logger zerolog.Logger) {
	defer conn.Close()

	sess := session.New()
	confirmer := display.NewTerminalConfirmer()
	dispatcher := protocol.New(sess, confirmer, readTemp)

	transport := &connTransport{conn: conn}
	for {
		if err := dispatcher.Poll(transport); err != nil {
			logger.Error().Err(err).Msg("transport error, closing connection")
			return
		}
	}
}

// readTemp stands in for the on-die ADC register; production firmware
// backs this with the real sensor.
func readTemp() int32 { return 21 }
