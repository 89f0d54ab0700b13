//go:build !linux

// ABOUTME: Stub ALSA output for non-linux platforms
// ABOUTME: Reports that the ALSA backend is unavailable
package output

import "fmt"

const alsaSupported = false

// DefaultDevices is empty where ALSA is unavailable
var DefaultDevices = map[string]string{}

// NewALSA returns an error on platforms without ALSA
func NewALSA(devices map[string]string) (Output, error) {
	return nil, fmt.Errorf("ALSA output is only available on linux")
}
