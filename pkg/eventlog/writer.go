// Package eventlog renders train events for people and for tools
package eventlog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/anggasct/mts"
)

// FormatTimestamp renders a simulated time as HH:MM:SS.d, rounded to
// the nearest tenth of a second
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	tenths := int64((d + mts.Tenth/2) / mts.Tenth)
	hours := tenths / 36000
	minutes := tenths / 600 % 60
	seconds := tenths / 10 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%d", hours, minutes, seconds, tenths%10)
}

// FormatEvent renders one event line without the trailing newline
func FormatEvent(kind mts.EventKind, trainID int, d mts.Direction, at time.Duration) string {
	var what string
	switch kind {
	case mts.EventReady:
		what = "is ready to go"
	case mts.EventOnTrack:
		what = "is ON the main track going"
	case mts.EventOffTrack:
		what = "is OFF the main track after going"
	}
	return fmt.Sprintf("%s Train %2d %s %s", FormatTimestamp(at), trainID, what, d)
}

// Writer is an observer printing the human readable event log
type Writer struct {
	mutex sync.Mutex
	out   io.Writer
	err   error
}

// NewWriter creates a writer on out
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// OnPhaseChange prints the event produced by a lifecycle step. After the
// first write error nothing more is written.
func (w *Writer) OnPhaseChange(t *mts.Train, tr mts.Transition, at time.Duration) {
	kind, ok := mts.KindOf(tr)
	if !ok {
		return
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintln(w.out, FormatEvent(kind, t.ID, t.Direction, at))
}

// Err returns the first write error, if any
func (w *Writer) Err() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.err
}
