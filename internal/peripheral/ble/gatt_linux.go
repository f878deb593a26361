//go:build linux

package ble

import "tinygo.org/x/bluetooth"

func readValue(c bluetooth.DeviceCharacteristic, buf []byte) (int, error) {
	return c.Read(buf)
}

// BlueZ takes every write through WriteValue, which bluetooth exposes on
// Linux only as WriteWithoutResponse.
func writeValue(c bluetooth.DeviceCharacteristic, p []byte) (int, error) {
	return c.WriteWithoutResponse(p)
}
