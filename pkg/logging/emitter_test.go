package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records events in memory for test assertions.
type captureSink struct {
	mu     sync.Mutex
	events []*Event
	closed bool
}

func (s *captureSink) Write(event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestEmit_StampsStaticMetadata(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(EmitterConfig{VmmID: "vmm-1", Version: "0.1.0"}, sink)

	require.NoError(t, e.Emit(EventDispatcherStart, "dispatcher running", nil))

	require.Len(t, sink.events, 1)
	got := sink.events[0]
	assert.Equal(t, "vmm-1", got.VmmID)
	assert.Equal(t, "0.1.0", got.Version)
	assert.Equal(t, EventDispatcherStart, got.EventType)
	assert.False(t, got.Timestamp.IsZero())
}

func TestEmit_MarshalsTypedData(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(EmitterConfig{VmmID: "vmm-1"}, sink)

	data := &ApiRequestData{Kind: "vm.boot", DurationMS: 12}
	require.NoError(t, e.Emit(EventApiRequest, "vm.boot handled", data))

	var decoded ApiRequestData
	require.NoError(t, json.Unmarshal(sink.events[0].Data, &decoded))
	assert.Equal(t, *data, decoded)
}

func TestEmit_UnmarshalableData(t *testing.T) {
	sink := &captureSink{}
	e := NewEmitter(EmitterConfig{VmmID: "vmm-1"}, sink)

	err := e.Emit(EventApiRequest, "bad", func() {})
	assert.ErrorIs(t, err, ErrMarshalData)
	assert.Empty(t, sink.events)
}

func TestEmit_FanoutToAllSinks(t *testing.T) {
	a, b := &captureSink{}, &captureSink{}
	e := NewEmitter(EmitterConfig{VmmID: "vmm-1"}, a, b)

	require.NoError(t, e.Emit(EventVmState, "created -> running", &VmStateData{From: "created", To: "running"}))
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestClose_ClosesAllSinks(t *testing.T) {
	a, b := &captureSink{}, &captureSink{}
	e := NewEmitter(EmitterConfig{}, a, b)
	require.NoError(t, e.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

type failingSink struct{ err error }

func (s *failingSink) Write(*Event) error { return s.err }
func (s *failingSink) Close() error       { return s.err }

func TestEmit_FirstSinkErrorWins(t *testing.T) {
	sinkErr := errors.New("disk full")
	e := NewEmitter(EmitterConfig{}, &failingSink{err: sinkErr}, &captureSink{})
	assert.ErrorIs(t, e.Emit(EventApiError, "x", nil), sinkErr)
}

func TestJSONLStream_WritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLStream(&buf)
	e := NewEmitter(EmitterConfig{VmmID: "vmm-1"}, w)

	require.NoError(t, e.Emit(EventApiRequest, "one", nil))
	require.NoError(t, e.Emit(EventApiRequest, "two", nil))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	for _, line := range lines {
		var ev Event
		require.NoError(t, json.Unmarshal(line, &ev))
		assert.Equal(t, "vmm-1", ev.VmmID)
	}
}

func TestTextWriter_Format(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf)
	e := NewEmitter(EmitterConfig{VmmID: "vmm-1"}, w)

	require.NoError(t, e.Emit(EventVmState, "created -> running", nil))
	assert.Contains(t, buf.String(), "vm_state")
	assert.Contains(t, buf.String(), "created -> running")
}
