package serialmux

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// NewRealSerialMux opens the serial port at path for the named camera.
func NewRealSerialMux(name, path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s for camera %s: %w", path, name, err)
	}

	return NewSerialMux[serial.Port](name, port), nil
}

// JeVoisProduct is the USB product string reported by JeVois cameras.
const JeVoisProduct = "JeVois"

var listPorts = enumerator.GetDetailedPortsList

// DiscoverCameras returns the device paths of USB serial ports whose product
// name contains filter, compared case-insensitively. An empty filter matches
// JeVoisProduct.
func DiscoverCameras(filter string) ([]string, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	return matchPorts(ports, filter), nil
}

func matchPorts(ports []*enumerator.PortDetails, filter string) []string {
	if filter == "" {
		filter = JeVoisProduct
	}
	filter = strings.ToLower(filter)

	var paths []string
	for _, p := range ports {
		if p == nil || !p.IsUSB {
			continue
		}
		if strings.Contains(strings.ToLower(p.Product), filter) {
			paths = append(paths, p.Name)
		}
	}
	sort.Strings(paths)
	return paths
}
