package bridge

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/sergev/swpll/synth"
)

// fakePort plays back device responses and records what the host sends.
type fakePort struct {
	in      bytes.Buffer
	out     bytes.Buffer
	timeout time.Duration
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error)           { return p.in.Read(b) }
func (p *fakePort) Write(b []byte) (int, error)          { return p.out.Write(b) }
func (p *fakePort) Close() error                         { p.closed = true; return nil }
func (p *fakePort) SetReadTimeout(t time.Duration) error { p.timeout = t; return nil }

func firmwareResponse() []byte {
	resp := []byte{CMD_GET_INFO, ACK_OKAY}
	info := make([]byte, 32)
	info[0], info[1], info[2], info[3] = 1, 4, CMD_STOP_CAPTURE, 2
	binary.LittleEndian.PutUint32(info[4:], 72000000)
	binary.LittleEndian.PutUint32(info[8:], 24000000)
	binary.LittleEndian.PutUint16(info[12:], 8)
	return append(resp, info...)
}

func openFake(t *testing.T) (*Client, *fakePort) {
	t.Helper()
	port := &fakePort{}
	port.in.Write(firmwareResponse())
	c, err := newClient(port, "SN0001")
	if err != nil {
		t.Fatalf("newClient() returned error: %v", err)
	}
	if !bytes.Equal(port.out.Bytes(), []byte{CMD_GET_INFO, 3, GETINFO_FIRMWARE}) {
		t.Fatalf("GET_INFO sent as % x", port.out.Bytes())
	}
	port.out.Reset()
	return c, port
}

func TestFirmwareInfo(t *testing.T) {
	c, _ := openFake(t)
	fw := c.FirmwareInfo()
	if fw.FwMajor != 1 || fw.FwMinor != 4 || fw.HwModel != 2 {
		t.Errorf("version fields = %+v", fw)
	}
	if fw.TimerFreqHz != 72000000 || fw.SynthInputHz != 24000000 || fw.USBBufKB != 8 {
		t.Errorf("frequency fields = %+v", fw)
	}
}

func TestWriteRegister(t *testing.T) {
	c, port := openFake(t)

	port.in.Write([]byte{CMD_WRITE_REG, ACK_OKAY})
	if err := c.WriteRegister(synth.RegPLLControl, 0x0a026500); err != nil {
		t.Fatalf("WriteRegister() returned error: %v", err)
	}
	want := []byte{CMD_WRITE_REG, 7, byte(synth.RegPLLControl), 0x00, 0x65, 0x02, 0x0a}
	if !bytes.Equal(port.out.Bytes(), want) {
		t.Errorf("sent % x, want % x", port.out.Bytes(), want)
	}

	port.in.Write([]byte{CMD_WRITE_REG, ACK_BAD_REGISTER})
	if err := c.WriteRegister(synth.Register(9), 0); !errors.Is(err, synth.ErrBadRegister) {
		t.Errorf("WriteRegister() error = %v, want ErrBadRegister", err)
	}

	port.in.Write([]byte{CMD_GET_INFO, ACK_OKAY})
	if err := c.WriteRegister(synth.RegFracDivider, 0); err == nil {
		t.Errorf("WriteRegister() accepted a mismatched ACK")
	}
}

func TestWriteRegisterNoAck(t *testing.T) {
	c, port := openFake(t)
	c.WriteRegisterNoAck(synth.RegFracDivider, 0x80000104)
	want := []byte{CMD_WRITE_REG_NOACK, 7, byte(synth.RegFracDivider), 0x04, 0x01, 0x00, 0x80}
	if !bytes.Equal(port.out.Bytes(), want) {
		t.Errorf("sent % x, want % x", port.out.Bytes(), want)
	}
}

func TestCapture(t *testing.T) {
	c, port := openFake(t)
	ctx := context.Background()

	if _, err := c.NextEdge(ctx); err == nil {
		t.Fatalf("NextEdge() before StartCapture did not fail")
	}

	port.in.Write([]byte{CMD_START_CAPTURE, ACK_OKAY})
	port.in.Write([]byte{0x00, 0x10, 0x34, 0x12, 0xff, 0xff, 0x00, 0x00, 0xaa})
	if err := c.StartCapture(); err != nil {
		t.Fatalf("StartCapture() returned error: %v", err)
	}

	s, err := c.NextEdge(ctx)
	if err != nil || s.Mclk != 0x1000 || s.Ref != 0x1234 {
		t.Errorf("NextEdge() = (%+v, %v)", s, err)
	}
	s, err = c.NextEdge(ctx)
	if err != nil || s.Mclk != 0xffff || s.Ref != 0 {
		t.Errorf("NextEdge() = (%+v, %v)", s, err)
	}

	if err := c.WriteRegister(synth.RegFracDivider, 0); !errors.Is(err, ErrCapturing) {
		t.Errorf("WriteRegister() while capturing returned %v", err)
	}

	port.out.Reset()
	if err := c.StopCapture(); err != nil {
		t.Fatalf("StopCapture() returned error: %v", err)
	}
	if !bytes.Equal(port.out.Bytes(), []byte{CMD_STOP_CAPTURE, 2}) {
		t.Errorf("sent % x on stop", port.out.Bytes())
	}
	if port.in.Len() != 0 {
		t.Errorf("%d bytes left after drain", port.in.Len())
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := c.NextEdge(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("NextEdge() error = %v, want context.Canceled", err)
	}
}

func TestCloseStopsCapture(t *testing.T) {
	c, port := openFake(t)
	port.in.Write([]byte{CMD_START_CAPTURE, ACK_OKAY})
	if err := c.StartCapture(); err != nil {
		t.Fatalf("StartCapture() returned error: %v", err)
	}
	port.out.Reset()
	if err := c.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
	if !port.closed || !bytes.Equal(port.out.Bytes(), []byte{CMD_STOP_CAPTURE, 2}) {
		t.Errorf("Close() sent % x, closed %v", port.out.Bytes(), port.closed)
	}
}

func TestAckError(t *testing.T) {
	if ackError(ACK_OKAY) != nil {
		t.Errorf("ackError(ACK_OKAY) != nil")
	}
	for code := byte(ACK_BAD_COMMAND); code <= 9; code++ {
		if ackError(code) == nil {
			t.Errorf("ackError(%d) = nil", code)
		}
	}
}
