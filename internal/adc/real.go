//go:build linux

package adc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IIOSource reads a voltage channel from a Linux IIO ADC via sysfs.
// Works with any in-tree ADC driver that exposes in_voltageN_raw and
// in_voltageN_scale (ads1015, mcp320x, etc.).
type IIOSource struct {
	rawPath string
	scale   float64 // millivolts per LSB, from in_voltageN_scale
	divider float64
	samples int
}

// NewIIOSource opens the given IIO device directory and prepares the
// channel for reading. The scale file is read once at startup; it is fixed
// for a configured ADC.
func NewIIOSource(device string, channel int, divider float64, samples int) (*IIOSource, error) {
	if samples < 1 {
		samples = 1
	}
	rawPath := filepath.Join(device, fmt.Sprintf("in_voltage%d_raw", channel))
	scalePath := filepath.Join(device, fmt.Sprintf("in_voltage%d_scale", channel))

	scale, err := readSysfsFloat(scalePath)
	if err != nil {
		return nil, fmt.Errorf("read adc scale: %w", err)
	}
	if _, err := readSysfsFloat(rawPath); err != nil {
		return nil, fmt.Errorf("probe adc channel: %w", err)
	}

	return &IIOSource{
		rawPath: rawPath,
		scale:   scale,
		divider: divider,
		samples: samples,
	}, nil
}

// Read averages the configured number of raw samples and converts to volts
// at the divider input.
func (s *IIOSource) Read() (float64, error) {
	var sum float64
	for i := 0; i < s.samples; i++ {
		raw, err := readSysfsFloat(s.rawPath)
		if err != nil {
			return 0, fmt.Errorf("read adc raw: %w", err)
		}
		sum += raw
	}
	mean := sum / float64(s.samples)
	// scale is mV per LSB; divider recovers the pre-divider voltage.
	return mean * s.scale / 1000.0 * s.divider, nil
}

// Close releases ADC resources. Sysfs needs no teardown.
func (s *IIOSource) Close() error {
	return nil
}

func readSysfsFloat(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}
