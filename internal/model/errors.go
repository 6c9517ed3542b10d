package model

import (
	"errors"
)

var (
	ErrNoTargets       = errors.New("no targets to check")
	ErrPingUnavailable = errors.New("ping unavailable")
)
