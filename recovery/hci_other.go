//go:build !linux

package recovery

import (
	"context"

	"go.uber.org/zap"
)

// HCIReset is only implemented on Linux.
type HCIReset struct {
	logger *zap.SugaredLogger
	dev    int
}

func NewHCIReset(logger *zap.SugaredLogger, dev int) *HCIReset {
	return &HCIReset{logger: logger, dev: dev}
}

func (h *HCIReset) Recover(ctx context.Context) error {
	return ErrUnsupported
}
