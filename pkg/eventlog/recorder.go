package eventlog

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anggasct/mts"
)

// JSONRecorder writes every train event of a run as one JSON object per line
type JSONRecorder struct {
	mts.BaseObserver

	mutex  sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	runID  uuid.UUID
	count  int
	err    error
}

// NewJSONRecorder creates a recorder writing to w
func NewJSONRecorder(w io.Writer) *JSONRecorder {
	return &JSONRecorder{enc: json.NewEncoder(w)}
}

// CreateJSONRecorder creates a recorder writing to a new file at path
func CreateJSONRecorder(path string) (*JSONRecorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	r := NewJSONRecorder(file)
	r.closer = file
	return r, nil
}

// Close closes the underlying file, if the recorder owns one
func (r *JSONRecorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// OnSimulationStarted captures the run ID stamped on every event
func (r *JSONRecorder) OnSimulationStarted(info mts.RunInfo) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.runID = info.RunID
}

// OnPhaseChange records the event produced by a lifecycle step
func (r *JSONRecorder) OnPhaseChange(t *mts.Train, tr mts.Transition, at time.Duration) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	event, ok := mts.NewEvent(r.runID, t, tr, at)
	if !ok || r.err != nil {
		return
	}
	if r.err = r.enc.Encode(event); r.err == nil {
		r.count++
	}
}

// Count returns the number of events written
func (r *JSONRecorder) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.count
}

// Err returns the first encoding error, if any
func (r *JSONRecorder) Err() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.err
}

// ReadEvents decodes a JSON-lines event stream written by a JSONRecorder
func ReadEvents(r io.Reader) ([]mts.Event, error) {
	var events []mts.Event
	dec := json.NewDecoder(r)
	for dec.More() {
		var event mts.Event
		if err := dec.Decode(&event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
