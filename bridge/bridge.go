package bridge

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/sergev/swpll/adapter"
	"github.com/sergev/swpll/pll"
	"github.com/sergev/swpll/synth"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	VendorID  = 0x1209 // Open source hardware projects
	ProductID = 0x5350 // Synthesizer PLL bridge
)

// Command codes
const (
	CMD_GET_INFO        = 0
	CMD_WRITE_REG       = 1
	CMD_WRITE_REG_NOACK = 2
	CMD_START_CAPTURE   = 3
	CMD_STOP_CAPTURE    = 4
)

// GET_INFO indices
const (
	GETINFO_FIRMWARE = 0
	GETINFO_CAPTURE  = 1
)

// ACK return codes
const (
	ACK_OKAY         = 0
	ACK_BAD_COMMAND  = 1
	ACK_BAD_REGISTER = 2
	ACK_BUS_ERROR    = 3
	ACK_OVERFLOW     = 4
	ACK_NOT_RUNNING  = 5
)

// ErrCapturing is returned for acknowledged commands while samples are
// streaming, since the ACK would be lost in the sample stream.
var ErrCapturing = errors.New("command not allowed while capturing")

// drainTimeout bounds the wait for samples in flight after a stop.
const drainTimeout = 100 * time.Millisecond

// Port is the part of serial.Port the client uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Client wraps a serial port connection to a bridge device
type Client struct {
	port         Port
	rd           *bufio.Reader
	wmu          sync.Mutex // serializes writes from the control and modulator tasks
	capturing    atomic.Bool
	firmwareInfo FirmwareInfo
	serialNumber string
	record       [adapter.SampleSize]byte
}

func init() {
	adapter.RegisterAdapter("serial", VendorID, ProductID, NewClient)
}

// NewClient creates a new bridge client using the provided port details.
// It opens the serial port and fetches the firmware information.
func NewClient(portDetails *enumerator.PortDetails) (adapter.Bridge, error) {
	// Open the serial port
	mode := &serial.Mode{
		BaudRate: 9600,
	}
	port, err := serial.Open(portDetails.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portDetails.Name, err)
	}

	/* Twiddle the baud rate, which indicates to the bridge that the
	 * data stream has been reset. */
	err = port.SetMode(&serial.Mode{BaudRate: 10000})
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set baud rate to 10000: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	err = port.SetMode(&serial.Mode{BaudRate: 9600})
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set baud rate to 9600: %w", err)
	}

	client, err := newClient(port, portDetails.SerialNumber)
	if err != nil {
		port.Close()
		return nil, err
	}
	glog.Infof("Bridge %s found on %s, firmware %d.%d", client.serialNumber, portDetails.Name,
		client.firmwareInfo.FwMajor, client.firmwareInfo.FwMinor)
	return client, nil
}

func newClient(port Port, serialNumber string) (*Client, error) {
	client := &Client{
		port:         port,
		rd:           bufio.NewReader(port),
		serialNumber: serialNumber,
	}

	// Fetch firmware version during initialization
	fwInfo, err := client.fetchFirmwareVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch firmware version: %w", err)
	}
	client.firmwareInfo = fwInfo
	return client, nil
}

// ackError converts an ACK error code to a readable error message
func ackError(code byte) error {
	msg := "unknown error"
	switch code {
	case ACK_OKAY:
		return nil
	case ACK_BAD_COMMAND:
		msg = "bad command"
	case ACK_BAD_REGISTER:
		return fmt.Errorf("bridge error: %w", synth.ErrBadRegister)
	case ACK_BUS_ERROR:
		msg = "synthesizer bus error"
	case ACK_OVERFLOW:
		msg = "capture overflow"
	case ACK_NOT_RUNNING:
		msg = "capture not running"
	}
	return fmt.Errorf("bridge error: %s", msg)
}

func (c *Client) write(cmd []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.port.Write(cmd)
	return err
}

// doCommand sends a command and reads the ACK response
func (c *Client) doCommand(cmd []byte) error {
	// Send command
	err := c.write(cmd)
	if err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}

	// Read ACK response (2 bytes: command echo, status)
	ack := make([]byte, 2)
	_, err = io.ReadFull(c.rd, ack)
	if err != nil {
		return fmt.Errorf("failed to read ACK: %w", err)
	}

	// Validate command echo matches
	if ack[0] != cmd[0] {
		return fmt.Errorf("command returned garbage (0x%02x != 0x%02x with status 0x%02x)",
			ack[0], cmd[0], ack[1])
	}

	// Check status
	return ackError(ack[1])
}

// FirmwareInfo contains all firmware information from GETINFO_FIRMWARE response
type FirmwareInfo struct {
	FwMajor      uint8
	FwMinor      uint8
	MaxCmd       uint8
	HwModel      uint8
	TimerFreqHz  uint32 // port timer clock
	SynthInputHz uint32 // synthesizer reference input
	USBBufKB     uint16
}

// fetchFirmwareVersion retrieves the firmware information from the bridge
func (c *Client) fetchFirmwareVersion() (FirmwareInfo, error) {
	var info FirmwareInfo

	// Send CMD_GET_INFO command: [CMD_GET_INFO, length=3, GETINFO_FIRMWARE]
	cmd := []byte{CMD_GET_INFO, 3, GETINFO_FIRMWARE}
	err := c.doCommand(cmd)
	if err != nil {
		return info, fmt.Errorf("failed to send GET_INFO command: %w", err)
	}

	// Read 32-byte response
	response := make([]byte, 32)
	_, err = io.ReadFull(c.rd, response)
	if err != nil {
		return info, fmt.Errorf("failed to read response: %w", err)
	}

	// Packed struct layout:
	// byte 0: fw_major (uint8)
	// byte 1: fw_minor (uint8)
	// byte 2: max_cmd (uint8)
	// byte 3: hw_model (uint8)
	// bytes 4-7: timer_freq (uint32, little-endian)
	// bytes 8-11: synth_input_freq (uint32, little-endian)
	// bytes 12-13: usb_buf_kb (uint16, little-endian)
	info.FwMajor = response[0]
	info.FwMinor = response[1]
	info.MaxCmd = response[2]
	info.HwModel = response[3]
	info.TimerFreqHz = binary.LittleEndian.Uint32(response[4:8])
	info.SynthInputHz = binary.LittleEndian.Uint32(response[8:12])
	info.USBBufKB = binary.LittleEndian.Uint16(response[12:14])

	return info, nil
}

// FirmwareInfo returns the information fetched when the bridge was opened.
func (c *Client) FirmwareInfo() FirmwareInfo {
	return c.firmwareInfo
}

func writeRegCmd(op byte, reg synth.Register, val uint32) []byte {
	cmd := []byte{op, 7, byte(reg), 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(cmd[3:], val)
	return cmd
}

// WriteRegister writes a synthesizer register and waits for the bridge to
// confirm the bus transfer.
func (c *Client) WriteRegister(reg synth.Register, val uint32) error {
	if c.capturing.Load() {
		return ErrCapturing
	}
	if glog.V(1) {
		glog.Infof("[%v] <- 0x%08x", reg, val)
	}
	return c.doCommand(writeRegCmd(CMD_WRITE_REG, reg, val))
}

// WriteRegisterNoAck queues a synthesizer register write. The bridge sends
// no response; failures are only logged.
func (c *Client) WriteRegisterNoAck(reg synth.Register, val uint32) {
	if err := c.write(writeRegCmd(CMD_WRITE_REG_NOACK, reg, val)); err != nil {
		glog.Warningf("Failed to write %v register: %v", reg, err)
	}
}

// StartCapture starts the edge sample stream.
func (c *Client) StartCapture() error {
	if c.capturing.Load() {
		return nil
	}
	if err := c.doCommand([]byte{CMD_START_CAPTURE, 2}); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	c.capturing.Store(true)
	return nil
}

// StopCapture stops the sample stream and discards what is still in flight.
// It must not run concurrently with NextEdge.
func (c *Client) StopCapture() error {
	if !c.capturing.Load() {
		return nil
	}
	if err := c.write([]byte{CMD_STOP_CAPTURE, 2}); err != nil {
		return fmt.Errorf("failed to stop capture: %w", err)
	}
	c.capturing.Store(false)

	if err := c.port.SetReadTimeout(drainTimeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	defer c.port.SetReadTimeout(serial.NoTimeout)
	c.rd.Reset(c.port)
	buf := make([]byte, 512)
	for {
		n, err := c.port.Read(buf)
		if n == 0 || err != nil {
			return nil
		}
	}
}

// NextEdge returns the next sample of the capture stream. The port read
// itself is not interruptible; closing the client unblocks it.
func (c *Client) NextEdge(ctx context.Context) (pll.Sample, error) {
	if err := ctx.Err(); err != nil {
		return pll.Sample{}, err
	}
	if !c.capturing.Load() {
		return pll.Sample{}, ackError(ACK_NOT_RUNNING)
	}
	if _, err := io.ReadFull(c.rd, c.record[:]); err != nil {
		return pll.Sample{}, fmt.Errorf("failed to read sample: %w", err)
	}
	return adapter.ParseSample(c.record[:]), nil
}

// Close stops any capture and closes the serial port. It may be called
// while NextEdge is blocked in another goroutine.
func (c *Client) Close() error {
	if c.capturing.Swap(false) {
		if err := c.write([]byte{CMD_STOP_CAPTURE, 2}); err != nil {
			glog.Warningf("Failed to stop capture: %v", err)
		}
	}
	return c.port.Close()
}
