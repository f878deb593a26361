//go:build darwin

package ble

import (
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/nibzard/tasksync/internal/peripheral"
)

// The CoreBluetooth backend has no characteristic read, so pulling from the
// device is unsupported on macOS. Pushing works.
func readValue(bluetooth.DeviceCharacteristic, []byte) (int, error) {
	return 0, fmt.Errorf("%w: characteristic reads are not available on macOS", peripheral.ErrUnsupported)
}

func writeValue(c bluetooth.DeviceCharacteristic, p []byte) (int, error) {
	return c.Write(p)
}
