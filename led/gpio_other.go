//go:build !linux

package led

import "errors"

var fnRequestLine = func(chip string, offset int) (outputLine, error) {
	return nil, errors.New("gpio character devices are only supported on linux")
}

func (g *GPIOIndicator) Close() error {
	return g.line.Close()
}
