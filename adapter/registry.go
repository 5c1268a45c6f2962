package adapter

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.bug.st/serial/enumerator"
)

// ErrNoBackend is returned when no registered bridge could be opened.
var ErrNoBackend = errors.New("no supported USB bridge found")

// AdapterInfo contains information about a bridge type
type AdapterInfo struct {
	Name      string
	VendorID  uint16
	ProductID uint16
	Factory   NewClientFunc
}

var registeredAdapters []AdapterInfo

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// RegisterAdapter registers a serial bridge factory with its VID/PID
func RegisterAdapter(name string, vendorID, productID uint16, factory NewClientFunc) {
	registeredAdapters = append(registeredAdapters, AdapterInfo{
		Name:      name,
		VendorID:  vendorID,
		ProductID: productID,
		Factory:   factory,
	})
}

// RegisterUSBAdapter registers a bridge that doesn't use serial ports
func RegisterUSBAdapter(name string, factory NewClientFunc) {
	registeredAdapters = append(registeredAdapters, AdapterInfo{
		Name:      name,
		VendorID:  0, // Special marker for USB-only bridges
		ProductID: 0,
		Factory:   factory,
	})
}

// Names returns the names of all registered bridges.
func Names() []string {
	var names []string
	for _, info := range registeredAdapters {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

func isUSBOnly(info AdapterInfo) bool {
	return info.VendorID == 0 && info.ProductID == 0
}

// Find opens the first bridge that responds. An empty name or "auto" tries
// every registered bridge, serial ones first; otherwise only the bridge
// registered under that name is tried.
func Find(name string) (Bridge, error) {
	match := func(info AdapterInfo) bool {
		return name == "" || name == "auto" || name == info.Name
	}
	known := name == "" || name == "auto"
	for _, info := range registeredAdapters {
		if info.Name == name {
			known = true
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown bridge %q, registered: %v", name, Names())
	}

	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	// Try registered serial port bridges
	var lastErr error
	for _, port := range ports {
		portVID, err := strconv.ParseUint(port.VID, 16, 16)
		if err != nil {
			continue
		}
		portPID, err := strconv.ParseUint(port.PID, 16, 16)
		if err != nil {
			continue
		}

		for _, info := range registeredAdapters {
			if isUSBOnly(info) || !match(info) {
				continue
			}
			if uint16(portVID) == info.VendorID && uint16(portPID) == info.ProductID {
				bridge, err := info.Factory(port)
				if err != nil {
					lastErr = err
					continue // Try next port
				}
				return bridge, nil
			}
		}
	}

	// Try registered USB-only bridges
	for _, info := range registeredAdapters {
		if !isUSBOnly(info) || !match(info) {
			continue
		}
		bridge, err := info.Factory(nil)
		if err == nil && bridge != nil {
			return bridge, nil
		}
		if err != nil {
			lastErr = err
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, lastErr)
	}
	return nil, ErrNoBackend
}
