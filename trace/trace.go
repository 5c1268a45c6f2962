package trace

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergev/swpll/adapter"
	"github.com/sergev/swpll/pll"
)

const (
	// Signature at the start of every trace file
	Signature = "SWPLLTRC"

	// Version of the record layout
	Version = 1
)

// ErrBadSignature is returned for files that are not edge traces.
var ErrBadSignature = errors.New("not an edge trace file")

// Header is the fixed size trace file header, stored little-endian.
type Header struct {
	Signature [8]byte
	Version   uint16
	Reserved  uint16
	RefHz     uint32 // nominal reference edge rate
	MclkHz    uint32 // nominal synthesizer output
	TimerHz   uint32 // reference timer clock, 0 when not captured
	Count     uint32 // number of records, 0 when unknown
}

// headerSize is the encoded size of Header.
var headerSize = binary.Size(Header{})

// PLLRatio returns the nominal mclk cycles per reference edge.
func (h Header) PLLRatio() int {
	if h.RefHz == 0 {
		return 0
	}
	return int((h.MclkHz + h.RefHz/2) / h.RefHz)
}

// RefExpectedInc returns the nominal reference timer ticks per edge.
func (h Header) RefExpectedInc() uint32 {
	if h.RefHz == 0 {
		return 0
	}
	return (h.TimerHz + h.RefHz/2) / h.RefHz
}

func isCompressed(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".gz")
}

// Writer appends edge samples to a trace.
type Writer struct {
	header Header
	file   *os.File // set when the count can be patched on Close
	gz     *gzip.Writer
	buf    *bufio.Writer
	closer io.Closer
	record []byte
	count  uint32
}

// Create creates a trace file. A ".gz" suffix selects gzip compression.
func Create(filename string, h Header) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	var w *Writer
	if isCompressed(filename) {
		gz := gzip.NewWriter(file)
		w, err = newWriter(gz, h)
		if w != nil {
			w.gz = gz
		}
	} else {
		w, err = newWriter(file, h)
		if w != nil {
			w.file = file
		}
	}
	if err != nil {
		file.Close()
		return nil, err
	}
	w.closer = file
	return w, nil
}

// NewWriter writes a trace to w. The header count is written as zero.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	return newWriter(w, h)
}

func newWriter(w io.Writer, h Header) (*Writer, error) {
	copy(h.Signature[:], Signature)
	h.Version = Version
	h.Count = 0
	tw := &Writer{
		header: h,
		buf:    bufio.NewWriter(w),
		record: make([]byte, 0, adapter.SampleSize),
	}
	if err := binary.Write(tw.buf, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return tw, nil
}

// Write appends one sample.
func (w *Writer) Write(s pll.Sample) error {
	w.record = adapter.AppendSample(w.record[:0], s)
	if _, err := w.buf.Write(w.record); err != nil {
		return fmt.Errorf("failed to write sample: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of samples written.
func (w *Writer) Count() uint32 {
	return w.count
}

// Flush writes buffered samples to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace: %w", err)
	}
	return nil
}

// Close flushes the trace. For uncompressed files it also records the
// final sample count in the header.
func (w *Writer) Close() error {
	err := w.Flush()
	if err == nil && w.gz != nil {
		err = w.gz.Close()
	}
	if err == nil && w.file != nil {
		countOffset := int64(headerSize - 4)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], w.count)
		if _, werr := w.file.WriteAt(b[:], countOffset); werr != nil {
			err = fmt.Errorf("failed to update sample count: %w", werr)
		}
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Reader reads edge samples from a trace. It implements pll.EdgeSource,
// so a recorded trace can be replayed through the control loop.
type Reader struct {
	header Header
	rd     *bufio.Reader
	closer []io.Closer
	record [adapter.SampleSize]byte
	read   uint32
}

// Open opens a trace file, decompressing it when the name ends in ".gz".
func Open(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	var src io.Reader = file
	closers := []io.Closer{file}
	if isCompressed(filename) {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create gzip reader for %s: %w", filename, err)
		}
		src = gz
		closers = []io.Closer{gz, file}
	}
	r, err := NewReader(src)
	if err != nil {
		for _, c := range closers {
			c.Close()
		}
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	r.closer = closers
	return r, nil
}

// NewReader reads a trace from r.
func NewReader(r io.Reader) (*Reader, error) {
	tr := &Reader{rd: bufio.NewReader(r)}
	if err := binary.Read(tr.rd, binary.LittleEndian, &tr.header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if string(tr.header.Signature[:]) != Signature {
		return nil, ErrBadSignature
	}
	if tr.header.Version != Version {
		return nil, fmt.Errorf("unsupported trace version %d", tr.header.Version)
	}
	return tr, nil
}

// Header returns the trace header.
func (r *Reader) Header() Header {
	return r.header
}

// NextEdge returns the next recorded sample, or io.EOF at the end of the trace.
func (r *Reader) NextEdge(ctx context.Context) (pll.Sample, error) {
	if err := ctx.Err(); err != nil {
		return pll.Sample{}, err
	}
	if r.header.Count != 0 && r.read >= r.header.Count {
		return pll.Sample{}, io.EOF
	}
	if _, err := io.ReadFull(r.rd, r.record[:]); err != nil {
		if err == io.EOF && r.header.Count == 0 {
			return pll.Sample{}, io.EOF
		}
		return pll.Sample{}, fmt.Errorf("truncated trace after %d samples: %w", r.read, err)
	}
	r.read++
	return adapter.ParseSample(r.record[:]), nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	var err error
	for _, c := range r.closer {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Read loads a whole trace file into memory.
func Read(filename string) (Header, []pll.Sample, error) {
	r, err := Open(filename)
	if err != nil {
		return Header{}, nil, err
	}
	defer r.Close()

	samples := make([]pll.Sample, 0, r.header.Count)
	for {
		s, err := r.NextEdge(context.Background())
		if err == io.EOF {
			return r.header, samples, nil
		}
		if err != nil {
			return Header{}, nil, err
		}
		samples = append(samples, s)
	}
}

// Tee returns an edge source that records every sample src delivers.
func Tee(src pll.EdgeSource, w *Writer) pll.EdgeSource {
	return &tee{src: src, w: w}
}

type tee struct {
	src pll.EdgeSource
	w   *Writer
}

func (t *tee) NextEdge(ctx context.Context) (pll.Sample, error) {
	s, err := t.src.NextEdge(ctx)
	if err != nil {
		return s, err
	}
	if err := t.w.Write(s); err != nil {
		return s, err
	}
	return s, nil
}
