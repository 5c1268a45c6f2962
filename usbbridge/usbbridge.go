package usbbridge

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/sergev/swpll/adapter"
	"github.com/sergev/swpll/pll"
	"github.com/sergev/swpll/synth"
	"go.bug.st/serial/enumerator"
)

const (
	VendorID  = 0x1209
	ProductID = 0x5351
	Interface = 0

	EndpointBulkOut = 0x01
	EndpointBulkIn  = 0x81

	ControlRequestIn  = 0xc0 // REQTYPE_IN_VENDOR_DEVICE
	ControlRequestOut = 0x40 // REQTYPE_OUT_VENDOR_DEVICE

	RequestInfo     = 0x01
	RequestWriteReg = 0x02
	RequestCapture  = 0x03

	ControlTimeout = 5 * time.Second // Timeout for USB control transfers

	// Stream reading constants
	ReadBufferSize = 512
)

// Client wraps a USB connection to a bridge device
type Client struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	intf    *gousb.Interface
	done    func()
	bulkOut *gousb.OutEndpoint
	bulkIn  *gousb.InEndpoint
	info    string

	wmu       sync.Mutex
	capturing bool
	samples   sampleBuffer
}

func init() {
	adapter.RegisterUSBAdapter("usb", NewClient)
}

// NewClient creates a new bridge client using USB communication.
// The portDetails parameter is ignored as the device is opened directly.
func NewClient(portDetails *enumerator.PortDetails) (adapter.Bridge, error) {
	ctx := gousb.NewContext()

	// Compare as uint16 since DeviceDesc.Vendor/Product need uint16 comparison
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == VendorID && uint16(desc.Product) == ProductID
	})
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("USB bridge not found (VID=0x%04X PID=0x%04X)", VendorID, ProductID)
	}

	// Use the first matching device
	dev := devs[0]
	for i := 1; i < len(devs); i++ {
		devs[i].Close()
	}
	dev.ControlTimeout = ControlTimeout

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to get config 1: %w", err)
	}

	intf, err := cfg.Interface(Interface, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", Interface, err)
	}

	// Create done function that closes interface and config
	done := func() {
		intf.Close()
		cfg.Close()
	}

	bulkOut, err := intf.OutEndpoint(EndpointBulkOut)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to open bulk out endpoint: %w", err)
	}

	bulkIn, err := intf.InEndpoint(EndpointBulkIn)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to open bulk in endpoint: %w", err)
	}

	client := &Client{
		ctx:     ctx,
		dev:     dev,
		intf:    intf,
		done:    done,
		bulkOut: bulkOut,
		bulkIn:  bulkIn,
	}

	client.info, err = client.controlIn(RequestInfo, 0)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read device info: %w", err)
	}
	glog.Infof("USB bridge found: %s", client.info)
	return client, nil
}

// controlIn performs a vendor control transfer IN request and returns the
// text response.
func (c *Client) controlIn(request byte, index uint16) (string, error) {
	buf := make([]byte, 512)
	length, err := c.dev.Control(ControlRequestIn, request, 0, index, buf)
	if err != nil {
		return "", fmt.Errorf("control transfer failed: %w", err)
	}
	return strings.TrimRight(string(buf[:length]), "\x00"), nil
}

// controlOut performs a vendor control transfer OUT request.
func (c *Client) controlOut(request byte, value, index uint16, data []byte) error {
	_, err := c.dev.Control(ControlRequestOut, request, value, index, data)
	if err != nil {
		return fmt.Errorf("control transfer failed: %w", err)
	}
	return nil
}

// WriteRegister writes a synthesizer register through a control transfer,
// which completes only after the bridge has performed the bus write.
func (c *Client) WriteRegister(reg synth.Register, val uint32) error {
	if glog.V(1) {
		glog.Infof("[%v] <- 0x%08x", reg, val)
	}
	data := binary.LittleEndian.AppendUint32(nil, val)
	if err := c.controlOut(RequestWriteReg, uint16(reg), 0, data); err != nil {
		return fmt.Errorf("failed to write %v register: %w", reg, err)
	}
	return nil
}

// WriteRegisterNoAck queues a register write on the bulk out endpoint.
func (c *Client) WriteRegisterNoAck(reg synth.Register, val uint32) {
	pkt := binary.LittleEndian.AppendUint32([]byte{byte(reg)}, val)
	c.wmu.Lock()
	_, err := c.bulkOut.Write(pkt)
	c.wmu.Unlock()
	if err != nil {
		glog.Warningf("Failed to write %v register: %v", reg, err)
	}
}

// StartCapture starts the edge sample stream on the bulk in endpoint.
func (c *Client) StartCapture() error {
	if c.capturing {
		return nil
	}
	if err := c.controlOut(RequestCapture, 1, 0, nil); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	c.samples.reset()
	c.capturing = true
	return nil
}

// StopCapture stops the stream. Samples already buffered are dropped.
func (c *Client) StopCapture() error {
	if !c.capturing {
		return nil
	}
	c.capturing = false
	c.samples.reset()
	if err := c.controlOut(RequestCapture, 0, 0, nil); err != nil {
		return fmt.Errorf("failed to stop capture: %w", err)
	}
	return nil
}

// NextEdge returns the next sample, reading a new bulk transfer when the
// previous one is used up.
func (c *Client) NextEdge(ctx context.Context) (pll.Sample, error) {
	for {
		if s, ok := c.samples.next(); ok {
			return s, nil
		}
		if !c.capturing {
			return pll.Sample{}, fmt.Errorf("capture not running")
		}
		buf := c.samples.space(ReadBufferSize)
		n, err := c.bulkIn.ReadContext(ctx, buf)
		if err != nil {
			return pll.Sample{}, fmt.Errorf("failed to read samples: %w", err)
		}
		c.samples.commit(n)
	}
}

// PrintStatus prints device information to stdout
func (c *Client) PrintStatus() {
	fmt.Printf("USB Bridge: %s\n", c.info)
	desc := c.dev.Desc
	fmt.Printf("Bus %d, Address %d, Speed %v\n", desc.Bus, desc.Address, desc.Speed)
	fmt.Printf("Firmware Release: %v\n", desc.Device)
}

// Close closes the USB connection
func (c *Client) Close() error {
	if err := c.StopCapture(); err != nil {
		glog.Warningf("%v", err)
	}
	if c.done != nil {
		c.done()
	}
	if c.dev != nil {
		c.dev.Close()
	}
	if c.ctx != nil {
		return c.ctx.Close()
	}
	return nil
}
