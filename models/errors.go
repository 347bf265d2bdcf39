package models

import "errors"

var (
	ErrEmptyRegistry = errors.New("no devices configured")
	ErrInvalidDevice = errors.New("invalid device")
)
