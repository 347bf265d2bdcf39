// Package scanner pings Bluetooth devices with l2ping.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"relloyd/bluepresence/config"
	"relloyd/bluepresence/metrics"
	"relloyd/bluepresence/models"
)

var (
	ErrPingTimeout     = errors.New("ping timed out")
	ErrCommandNotFound = errors.New("ping command not found")

	fnRunCmd = runCmd
)

// cmdResult is the outcome of one ping process.
type cmdResult struct {
	exitCode int
	stdout   string
	stderr   string
}

func runCmd(ctx context.Context, name string, args ...string) (cmdResult, error) {
	var stdout, stderr strings.Builder
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := cmdResult{stdout: stdout.String(), stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		return res, fmt.Errorf("%w: %v", ErrPingTimeout, ctx.Err())
	case errors.Is(err, exec.ErrNotFound):
		return res, fmt.Errorf("%w: %v", ErrCommandNotFound, err)
	case errors.As(err, &exitErr):
		res.exitCode = exitErr.ExitCode()
		return res, nil
	case err != nil:
		return res, err
	}
	return res, nil
}

// L2Ping detects a device when one l2ping echo gets a reply.
type L2Ping struct {
	logger       *zap.SugaredLogger
	command      string
	pingTimeout  time.Duration
	waitSeconds  int
}

func NewL2Ping(logger *zap.SugaredLogger, cfg *config.ScanConfig) (*L2Ping, error) {
	if logger == nil || cfg == nil {
		return nil, fmt.Errorf("logger and config must be provided")
	}
	if err := config.CheckCmdAvailability(cfg.Command); err != nil {
		logger.Warnf("Pings will fail until %v is installed: %v", cfg.Command, err)
	}
	return &L2Ping{
		logger:       logger,
		command:      cfg.Command,
		pingTimeout:  cfg.PingTimeout,
		waitSeconds:  cfg.PingWaitSeconds,
	}, nil
}

// Scan pings each device in registry order. A failed ping counts as not detected
// and sets hadError, but never stops the remaining pings.
func (l *L2Ping) Scan(ctx context.Context, registry models.Registry) (models.Detected, bool) {
	detected := make(models.Detected)
	hadError := false

	for _, dev := range registry {
		if ctx.Err() != nil {
			return detected, true
		}
		found, err := l.ping(ctx, dev)
		if err != nil {
			hadError = true
			metrics.PingErrors.WithLabelValues(pingErrorReason(err)).Inc()
			l.logger.Warnf("Ping of %v (%v) failed: %v", dev.Name, dev.MAC, err)
			continue
		}
		if found {
			detected[dev.Name] = struct{}{}
		}
	}

	return detected, hadError
}

func (l *L2Ping) ping(ctx context.Context, dev models.Device) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.pingTimeout)
	defer cancel()

	args := []string{"-c", "1", "-t", strconv.Itoa(l.waitSeconds), dev.MAC.String()}
	l.logger.Debugf("Running: %v %v", l.command, strings.Join(args, " "))

	res, err := fnRunCmd(ctx, l.command, args...)
	if out := strings.TrimSpace(res.stdout); out != "" {
		l.logger.Debugf("%v stdout: %v", l.command, out)
	}
	if out := strings.TrimSpace(res.stderr); out != "" {
		l.logger.Debugf("%v stderr: %v", l.command, out)
	}
	if err != nil {
		return false, err
	}

	l.logger.Debugf("%v returncode for %v: %v", l.command, dev.Name, res.exitCode)
	if res.exitCode == 0 {
		l.logger.Infof("Device %v responded", dev.Name)
		return true, nil
	}
	return false, nil
}

func pingErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrPingTimeout):
		return "timeout"
	case errors.Is(err, ErrCommandNotFound):
		return "not_found"
	default:
		return "other"
	}
}
