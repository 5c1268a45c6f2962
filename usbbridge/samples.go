package usbbridge

import (
	"github.com/sergev/swpll/adapter"
	"github.com/sergev/swpll/pll"
)

// sampleBuffer splits bulk transfers into sample records. A record may
// straddle two transfers.
type sampleBuffer struct {
	buf []byte
	pos int
}

func (b *sampleBuffer) reset() {
	b.buf = b.buf[:0]
	b.pos = 0
}

// next returns the next complete record, if any.
func (b *sampleBuffer) next() (pll.Sample, bool) {
	if len(b.buf)-b.pos < adapter.SampleSize {
		return pll.Sample{}, false
	}
	s := adapter.ParseSample(b.buf[b.pos:])
	b.pos += adapter.SampleSize
	return s, true
}

// space compacts the buffer and returns room for n more bytes.
func (b *sampleBuffer) space(n int) []byte {
	rest := copy(b.buf, b.buf[b.pos:])
	b.buf = b.buf[:rest]
	b.pos = 0
	if cap(b.buf)-rest < n {
		grown := make([]byte, rest, rest+n)
		copy(grown, b.buf)
		b.buf = grown
	}
	return b.buf[rest : rest+n]
}

// commit appends n bytes written into the slice returned by space.
func (b *sampleBuffer) commit(n int) {
	b.buf = b.buf[:len(b.buf)+n]
}
