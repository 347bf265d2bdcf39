package led

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// outputLine is the part of a requested GPIO line used to drive an LED.
type outputLine interface {
	SetValue(value int) error
	Close() error
}

// GPIOIndicator lights an LED wired to a GPIO line while scanning is degraded.
type GPIOIndicator struct {
	logger   *zap.SugaredLogger
	chip     string
	offset   int
	line     outputLine
	mu       sync.Mutex
	degraded *bool
}

func NewGPIOIndicator(logger *zap.SugaredLogger, chip string, offset int) (*GPIOIndicator, error) {
	line, err := fnRequestLine(chip, offset)
	if err != nil {
		return nil, fmt.Errorf("request %v line %v: %w", chip, offset, err)
	}
	logger.Infof("Using status LED on %v line %v", chip, offset)
	return &GPIOIndicator{logger: logger, chip: chip, offset: offset, line: line}, nil
}

// ShowDegraded drives the line high while degraded. Repeated calls with the same state are no-ops.
func (g *GPIOIndicator) ShowDegraded(degraded bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.degraded != nil && *g.degraded == degraded {
		return
	}
	g.degraded = &degraded

	v := 0
	if degraded {
		v = 1
	}
	if err := g.line.SetValue(v); err != nil {
		g.logger.Warnf("Failed to set LED on %v line %v: %v", g.chip, g.offset, err)
	}
}
