package utils

import "testing"

func TestCreateTestDevice(t *testing.T) {
	device := CreateTestDevice()
	defer device.Free()

	if device.Mode() == "" {
		t.Error("device mode should not be empty")
	}
}

func TestCreateDevice(t *testing.T) {
	t.Run("EmptyPropsFallsBack", func(t *testing.T) {
		device, err := CreateDevice("")
		if err != nil {
			t.Fatal(err)
		}
		defer device.Free()
	})

	t.Run("ExplicitSerial", func(t *testing.T) {
		device, err := CreateDevice(`{"mode": "Serial"}`)
		if err != nil {
			t.Fatal(err)
		}
		defer device.Free()
		if device.Mode() != "Serial" {
			t.Errorf("mode = %s, want Serial", device.Mode())
		}
	})
}
