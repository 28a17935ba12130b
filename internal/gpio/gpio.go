// Package gpio provides GPIO output control with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Output drives a single GPIO output line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(on bool) error

	// Close releases GPIO resources, driving the line low first.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	PinPTT  = 17 // transmit-enable (keys the transmitter)
	PinTone = 22 // sidetone oscillator gate (morse identification)
	PinLED  = 27 // status indicator LED
)
