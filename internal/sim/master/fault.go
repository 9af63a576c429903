package master

import (
	"errors"
	"time"
)

var ErrNoSettings = errors.New("world settings not assigned")

type FaultKind string

// Config faults are missing or auto-corrected settings. Data faults are
// unusable content such as a spawn entry without a template. Numeric faults
// are clamped arithmetic edge cases.
const (
	FaultConfig   FaultKind = "config"
	FaultData     FaultKind = "data"
	FaultNumeric  FaultKind = "numeric"
	FaultInternal FaultKind = "internal"
)

type Fault struct {
	RunID   uint64
	Kind    FaultKind
	Chunk   string
	Message string
	At      time.Time
}

const maxRetainedFaults = 256
