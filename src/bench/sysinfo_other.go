//go:build !linux

package bench

import "fmt"

// Non-Linux stubs: /proc is unavailable, the meta fields stay empty.
func readLoadAvg() (float64, float64, float64, error) {
	return 0, 0, 0, fmt.Errorf("loadavg unsupported")
}

func readUptime() (float64, error) { return 0, fmt.Errorf("uptime unsupported") }

func readKernelVersion() (string, error) { return "", fmt.Errorf("kernel version unsupported") }
