package adc

import "errors"

// FakeSource is a test double that returns scripted voltage readings.
type FakeSource struct {
	// Readings contains scripted voltages to return.
	// Each call to Read() consumes the next reading.
	Readings []float64

	// index tracks current position in Readings
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeSource creates a FakeSource with the given readings.
func NewFakeSource(readings []float64) *FakeSource {
	return &FakeSource{Readings: readings}
}

// Read returns the next scripted reading.
// If readings are exhausted, returns the last reading repeatedly.
func (f *FakeSource) Read() (float64, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}

	if len(f.Readings) == 0 {
		return 0, errors.New("no readings configured")
	}

	v := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}

	return v, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the source to the beginning of readings.
func (f *FakeSource) Reset() {
	f.index = 0
	f.Closed = false
}
