package navcomm

import (
	"net"
	"strings"

	"go.bug.st/serial/enumerator"
)

// SerialPort describes a serial device found on the system.
type SerialPort struct {
	Name         string
	Description  string
	IsUSB        bool
	VID, PID     string
	SerialNumber string
}

// FindSerialPorts lists the serial devices of the system.
func FindSerialPorts() ([]SerialPort, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	out := make([]SerialPort, 0, len(ports))
	for _, p := range ports {
		out = append(out, SerialPort{
			Name:         p.Name,
			Description:  p.Product,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
		})
	}
	return out, nil
}

// FindCANInterfaces lists network interfaces that look like CAN devices.
func FindCANInterfaces() (dev []string) {
	iFaces, _ := net.Interfaces()
	for _, i := range iFaces {
		if strings.Contains(i.Name, "can") {
			dev = append(dev, i.Name)
		}
	}
	return
}
