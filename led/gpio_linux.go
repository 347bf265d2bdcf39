//go:build linux

package led

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

var fnRequestLine = func(chip string, offset int) (outputLine, error) {
	return gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
}

// Close drives the line low and releases it.
func (g *GPIOIndicator) Close() error {
	if err := g.line.SetValue(0); err != nil {
		g.logger.Warnf("Failed to turn off LED on %v line %v: %v", g.chip, g.offset, err)
	}
	if err := g.line.Close(); err != nil {
		return fmt.Errorf("close gpio line %v: %w", g.offset, err)
	}
	return nil
}
