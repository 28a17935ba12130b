// Package adc provides calibrated voltage readings with hardware
// abstraction. The real implementation reads a Linux IIO ADC channel via
// sysfs. The fake implementation allows testing without hardware.
package adc

// Source supplies calibrated battery voltage readings.
type Source interface {
	// Read returns the battery voltage in volts, averaged over several
	// sub-samples and scaled through the input divider.
	Read() (float64, error)

	// Close releases ADC resources.
	Close() error
}

// Defaults for the Pi HAT's ADC wiring.
const (
	// DefaultDevice is the sysfs directory of the ADC.
	DefaultDevice = "/sys/bus/iio/devices/iio:device0"

	// DefaultChannel is the IIO voltage channel index the battery divider
	// is wired to.
	DefaultChannel = 0

	// DefaultDivider is the input divider ratio (Vbat / Vadc). A 4:1
	// divider lets a 3.3V ADC measure up to ~13.2V.
	DefaultDivider = 4.0

	// DefaultSamples is the number of sub-samples averaged per reading.
	DefaultSamples = 8
)
