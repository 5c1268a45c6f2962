package adapter

import (
	"encoding/binary"

	"github.com/sergev/swpll/pll"
	"github.com/sergev/swpll/synth"
	"go.bug.st/serial/enumerator"
)

// Bridge is a USB device sitting between the host and the synthesizer.
// It programs synthesizer registers and time-stamps reference clock edges
// with its two port timers.
type Bridge interface {
	synth.RegisterWriter
	pll.EdgeSource

	// StartCapture starts streaming edge samples.
	StartCapture() error

	// StopCapture stops streaming and discards samples still in flight.
	StopCapture() error

	// PrintStatus prints bridge status information to stdout
	PrintStatus()

	Close() error
}

// NewClientFunc is a function type that creates a new bridge client
type NewClientFunc func(portDetails *enumerator.PortDetails) (Bridge, error)

// SampleSize is the size of one edge sample on the wire and in trace files:
// mclk timer then reference timer, 16 bits each, little-endian.
const SampleSize = 4

// ParseSample decodes one edge sample record.
func ParseSample(b []byte) pll.Sample {
	return pll.Sample{
		Mclk: binary.LittleEndian.Uint16(b[0:2]),
		Ref:  binary.LittleEndian.Uint16(b[2:4]),
	}
}

// AppendSample appends the record for s to b.
func AppendSample(b []byte, s pll.Sample) []byte {
	b = binary.LittleEndian.AppendUint16(b, s.Mclk)
	return binary.LittleEndian.AppendUint16(b, s.Ref)
}
