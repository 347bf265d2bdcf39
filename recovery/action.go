package recovery

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
	"relloyd/bluepresence/config"
	"relloyd/bluepresence/models"
)

var (
	ErrUnsupported = errors.New("adapter reset is not supported on this platform")

	fnRunCmd = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}
)

// NewAction returns the configured recovery action: a shell command when one is set,
// else a raw HCI reset of the configured adapter.
func NewAction(logger *zap.SugaredLogger, cfg *config.RecoveryConfig) models.RecoveryAction {
	if strings.TrimSpace(cfg.Command) != "" {
		logger.Infof("Recovery action: command %q", cfg.Command)
		return &CommandAction{logger: logger, command: cfg.Command}
	}
	logger.Infof("Recovery action: reset adapter hci%d", cfg.Adapter)
	return NewHCIReset(logger, cfg.Adapter)
}

// CommandAction runs a user supplied shell command such as "hciconfig hci0 reset".
type CommandAction struct {
	logger  *zap.SugaredLogger
	command string
}

func (c *CommandAction) Recover(ctx context.Context) error {
	output, err := fnRunCmd(ctx, "sh", "-c", c.command)
	if len(output) > 0 {
		c.logger.Debugf("Recovery command output: %s", strings.TrimSpace(string(output)))
	}
	if err != nil {
		return fmt.Errorf("recovery command %q failed: %w", c.command, err)
	}
	return nil
}
