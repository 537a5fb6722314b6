package logging

import (
	"encoding/json"
	"time"

	"github.com/embervm/ember/internal/errx"
)

// EmitterConfig holds the static metadata stamped onto every event.
type EmitterConfig struct {
	VmmID   string
	Version string
}

// Emitter dispatches typed events to one or more sinks.
//
// A nil *Emitter is safe to hold; callers guard emission with:
//
//	if emitter != nil {
//	    _ = emitter.Emit(...)
//	}
type Emitter struct {
	config EmitterConfig
	sinks  []Sink
}

// NewEmitter creates an emitter with the given configuration and sinks.
func NewEmitter(cfg EmitterConfig, sinks ...Sink) *Emitter {
	return &Emitter{
		config: cfg,
		sinks:  sinks,
	}
}

// Emit constructs an event with the emitter's static metadata and writes
// it to all registered sinks. data is the typed payload struct (nil for
// none). Returns the first error encountered; callers emit best-effort
// and discard it with _ =.
func (e *Emitter) Emit(eventType, summary string, data interface{}) error {
	var rawData json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return errx.Wrap(ErrMarshalData, err)
		}
		rawData = b
	}

	event := &Event{
		Timestamp: time.Now().UTC(),
		VmmID:     e.config.VmmID,
		Version:   e.config.Version,
		EventType: eventType,
		Summary:   summary,
		Data:      rawData,
	}

	for _, sink := range e.sinks {
		if err := sink.Write(event); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all sinks. Returns the first error encountered.
func (e *Emitter) Close() error {
	var firstErr error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
