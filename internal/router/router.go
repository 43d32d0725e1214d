// Package router turns asynchronous engine events into event-log appends.
// It runs on threads the engine owns: it never blocks on session state,
// never takes the manager's lock, and never lets a failure travel back
// into the engine.
package router

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/maasd/maasd/internal/eventlog"
	"github.com/maasd/maasd/internal/ffi"
	"github.com/maasd/maasd/internal/observability"
)

// Appender is the slice of the event-log store the router needs.
type Appender interface {
	Append(partition string, rec eventlog.Record) (uint64, error)
}

// Sink builds the event callback registered with every session. Events
// are partitioned by the device identifier the engine itself reports in
// the payload, not by the caller's session id: the two are decoupled
// because events arrive asynchronously. Payloads carrying no identifier
// cannot be routed and are dropped.
func Sink(store Appender) ffi.EventFunc {
	return func(kind int32, payload []byte) {
		defer func() { _ = recover() }()

		var probe struct {
			UUID string `json:"uuid"`
		}
		if err := json.Unmarshal(payload, &probe); err != nil || probe.UUID == "" {
			observability.RecordEngineEvent("dropped")
			log.Debug().Int32("kind", kind).Msg("engine event without device key dropped")
			return
		}

		rec := eventlog.Record{
			Time: time.Now().UnixMilli(),
			Kind: kind,
			Body: payload,
		}
		if _, err := store.Append(probe.UUID, rec); err != nil {
			// Best-effort: the engine thread cannot handle a failure.
			observability.RecordEngineEvent("failed")
			log.Warn().Str("partition", probe.UUID).Err(err).Msg("engine event append failed")
			return
		}
		observability.RecordEngineEvent("stored")
	}
}
