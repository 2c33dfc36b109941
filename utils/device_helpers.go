package utils

import (
	"github.com/notargets/gocca"
	log "github.com/sirupsen/logrus"
)

// CreateTestDevice creates a device for tests and drivers, preferring
// parallel backends and falling back to Serial.
func CreateTestDevice() *gocca.OCCADevice {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}

	for _, props := range backends {
		device, err := gocca.NewDevice(props)
		if err == nil {
			log.WithField("mode", device.Mode()).Debug("created device")
			return device
		}
	}

	panic("failed to create any device")
}

// CreateDevice builds a device from explicit OCCA properties JSON,
// falling back to the test device chain when props is empty.
func CreateDevice(props string) (*gocca.OCCADevice, error) {
	if props == "" {
		return CreateTestDevice(), nil
	}
	return gocca.NewDevice(props)
}
