// Package led defines the Strip contract for addressable LED output.
//
// A Strip is a framebuffer: SetPixel mutates local state and only Refresh
// pushes the frame out. The renderer always calls Refresh exactly once per
// tick, so backends can treat each Refresh as a complete frame.
//
// A Strip is driven by a single goroutine and does not need to be safe for
// concurrent use.
package led

// Strip is an addressable run of RGB pixels.
type Strip interface {
	// Len returns the number of pixels.
	Len() int

	// SetPixel stages the color of pixel i. Out-of-range indices return an
	// error and leave the frame unchanged.
	SetPixel(i int, r, g, b uint8) error

	// Refresh pushes the staged frame to the hardware.
	Refresh() error

	// Clear stages all pixels off. The caller still needs a Refresh to blank
	// the hardware.
	Clear() error

	// Close blanks the strip and releases it. Calling Close more than once
	// is safe and returns nil.
	Close() error
}
