package bridge

import (
	"encoding/binary"
	"fmt"
	"io"
)

// CaptureStats contains sample stream statistics from GETINFO_CAPTURE response
type CaptureStats struct {
	Samples   uint32 // samples sent since power on
	Overflows uint32 // samples dropped because the USB buffer was full
	Writes    uint32 // register writes performed
	BusErrors uint32 // register writes the synthesizer did not acknowledge
}

// fetchCaptureStats retrieves stream statistics from the bridge
func (c *Client) fetchCaptureStats() (CaptureStats, error) {
	var stats CaptureStats

	// Send CMD_GET_INFO command: [CMD_GET_INFO, length=3, GETINFO_CAPTURE]
	cmd := []byte{CMD_GET_INFO, 3, GETINFO_CAPTURE}
	err := c.doCommand(cmd)
	if err != nil {
		return stats, fmt.Errorf("failed to send GET_INFO CAPTURE command: %w", err)
	}

	// Read 16-byte response (4 uint32_t values in little-endian format)
	response := make([]byte, 16)
	_, err = io.ReadFull(c.rd, response)
	if err != nil {
		return stats, fmt.Errorf("failed to read CAPTURE response: %w", err)
	}

	stats.Samples = binary.LittleEndian.Uint32(response[0:4])
	stats.Overflows = binary.LittleEndian.Uint32(response[4:8])
	stats.Writes = binary.LittleEndian.Uint32(response[8:12])
	stats.BusErrors = binary.LittleEndian.Uint32(response[12:16])

	return stats, nil
}

// PrintStatus prints all firmware information to stdout
func (c *Client) PrintStatus() {
	fw := c.firmwareInfo

	fmt.Printf("Bridge Firmware Version: %d.%d\n", fw.FwMajor, fw.FwMinor)
	fmt.Printf("Serial Number: %s\n", c.serialNumber)
	fmt.Printf("Max Command: %d\n", fw.MaxCmd)
	fmt.Printf("Hardware Model: %d\n", fw.HwModel)
	fmt.Printf("Timer Frequency: %.3f MHz\n", float64(fw.TimerFreqHz)*1.0e-6)
	fmt.Printf("Synthesizer Input: %.3f MHz\n", float64(fw.SynthInputHz)*1.0e-6)
	fmt.Printf("USB Buffer: %d KB\n", fw.USBBufKB)

	if c.capturing.Load() {
		return
	}
	stats, err := c.fetchCaptureStats()
	if err != nil {
		fmt.Printf("Warning: Failed to fetch capture statistics: %v\n", err)
		return
	}
	fmt.Printf("\nCapture Statistics:\n")
	fmt.Printf("  Samples: %d (%d dropped)\n", stats.Samples, stats.Overflows)
	fmt.Printf("  Register Writes: %d (%d bus errors)\n", stats.Writes, stats.BusErrors)
}
