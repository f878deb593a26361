//go:build windows

package ble

import "tinygo.org/x/bluetooth"

func readValue(c bluetooth.DeviceCharacteristic, buf []byte) (int, error) {
	return c.Read(buf)
}

func writeValue(c bluetooth.DeviceCharacteristic, p []byte) (int, error) {
	return c.Write(p)
}
