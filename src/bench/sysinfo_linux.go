//go:build linux

package bench

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func readLoadAvg() (float64, float64, float64, error) {
	b, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, 0, 0, err
	}
	parts := strings.Fields(string(b))
	if len(parts) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected /proc/loadavg format")
	}
	var vals [3]float64
	for i := 0; i < 3; i++ {
		f, e := strconv.ParseFloat(parts[i], 64)
		if e != nil {
			return 0, 0, 0, e
		}
		vals[i] = f
	}
	return vals[0], vals[1], vals[2], nil
}

func readUptime() (float64, error) {
	b, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, err
	}
	parts := strings.Fields(string(b))
	if len(parts) < 1 {
		return 0, fmt.Errorf("unexpected /proc/uptime format")
	}
	return strconv.ParseFloat(parts[0], 64)
}

func readKernelVersion() (string, error) {
	b, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
