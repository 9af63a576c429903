package master

import (
	"errors"
	"time"
)

const (
	EventGenerateStart = "generate_start"
	EventComplete      = "complete"
	EventCleared       = "cleared"
	EventFault         = "fault"
)

type Event struct {
	Time         time.Time `json:"time"`
	Kind         string    `json:"kind"`
	RunID        uint64    `json:"run_id"`
	Seed         string    `json:"seed,omitempty"`
	CombinedSeed int64     `json:"combined_seed,omitempty"`
	Chunks       int       `json:"chunks,omitempty"`
	Spawns       int       `json:"spawns,omitempty"`
	Faults       int       `json:"faults,omitempty"`
	Digest       string    `json:"digest,omitempty"`
	FaultKind    string    `json:"fault_kind,omitempty"`
	Chunk        string    `json:"chunk,omitempty"`
	Message      string    `json:"message,omitempty"`
	ElapsedMS    int64     `json:"elapsed_ms,omitempty"`
}

// Sinks fans one event out to several sinks. Every sink sees the event even
// when an earlier one fails.
type Sinks []EventSink

func (s Sinks) WriteEvent(v any) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.WriteEvent(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
