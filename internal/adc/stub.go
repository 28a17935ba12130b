//go:build !linux

package adc

import "errors"

// IIOSource is not available on non-Linux platforms.
type IIOSource struct{}

// NewIIOSource returns an error on non-Linux platforms.
func NewIIOSource(device string, channel int, divider float64, samples int) (*IIOSource, error) {
	return nil, errors.New("adc: not supported on this platform (requires Linux IIO)")
}

// Read is not implemented on non-Linux platforms.
func (s *IIOSource) Read() (float64, error) {
	return 0, errors.New("adc: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *IIOSource) Close() error {
	return nil
}
