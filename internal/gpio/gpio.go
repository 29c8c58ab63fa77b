// Package gpio provides GPIO input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the logical level of one input line.
type Reader interface {
	// Read returns the current level: true when the line reads active.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO character device on a stock Raspberry Pi.
const DefaultChip = "gpiochip0"
