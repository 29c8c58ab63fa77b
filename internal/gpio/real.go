//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads one input line through the Linux GPIO character
// device.
type RealReader struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealReader requests the given line offset as an input. pull is
// "up", "down" or "none"; activeLow inverts the logical sense for
// inputs wired through inverting stages such as optocouplers.
func NewRealReader(chipName string, offset int, pull string, activeLow bool) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	switch pull {
	case "up":
		opts = append(opts, gpiocdev.WithPullUp)
	case "", "down":
		// Pull-down matches Pi boot defaults, so a floating input
		// reads inactive instead of oscillating.
		opts = append(opts, gpiocdev.WithPullDown)
	case "none":
	default:
		chip.Close()
		return nil, fmt.Errorf("unknown pull %q (want up, down or none)", pull)
	}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := chip.RequestLine(offset, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request line %d: %w", offset, err)
	}

	return &RealReader{chip: chip, line: line}, nil
}

// Read returns the logical level of the line.
func (r *RealReader) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read line: %w", err)
	}
	return v != 0, nil
}

// Close releases GPIO resources.
// Reconfigures the line to input with pull-down (matching Pi boot
// defaults) before closing so external hardware sees the same state a
// reboot would produce.
func (r *RealReader) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
