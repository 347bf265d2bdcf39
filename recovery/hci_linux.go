//go:build linux

package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// HCI device ioctls from <bluetooth/hci.h>: _IOW('H', 201|202, int).
const (
	hciDevUp   = 0x400448c9
	hciDevDown = 0x400448ca
)

var (
	fnOpenHCI = func() (int, error) {
		return unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	}
	fnCloseHCI = unix.Close
	fnIoctl    = func(fd int, req uint, dev int) error {
		return unix.IoctlSetInt(fd, req, dev)
	}
	hciSettleDelay = 500 * time.Millisecond
)

// HCIReset power cycles a local Bluetooth adapter, the same as "hciconfig hciN reset".
type HCIReset struct {
	logger *zap.SugaredLogger
	dev    int
}

func NewHCIReset(logger *zap.SugaredLogger, dev int) *HCIReset {
	return &HCIReset{logger: logger, dev: dev}
}

func (h *HCIReset) Recover(ctx context.Context) error {
	fd, err := fnOpenHCI()
	if err != nil {
		return fmt.Errorf("failed to open HCI socket: %w", err)
	}
	defer fnCloseHCI(fd)

	if err := fnIoctl(fd, hciDevDown, h.dev); err != nil {
		return fmt.Errorf("failed to bring hci%d down: %w", h.dev, err)
	}
	h.logger.Infof("Adapter hci%d is down", h.dev)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(hciSettleDelay):
	}

	if err := fnIoctl(fd, hciDevUp, h.dev); err != nil && !errors.Is(err, unix.EALREADY) {
		return fmt.Errorf("failed to bring hci%d up: %w", h.dev, err)
	}
	h.logger.Infof("Adapter hci%d is up", h.dev)
	return nil
}
