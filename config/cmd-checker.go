package config

import (
	"fmt"
	"os/exec"
)

var fnLookPath = exec.LookPath

// CheckCmdAvailability returns an error if cmd cannot be found on PATH.
func CheckCmdAvailability(cmd string) error {
	_, err := fnLookPath(cmd)
	if err != nil {
		return fmt.Errorf("%v command not found on the system: %w", cmd, err)
	}
	return nil
}
