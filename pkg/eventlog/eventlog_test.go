package eventlog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/mts"
)

func TestFormatTimestamp(t *testing.T) {
	testCases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00.0"},
		{time.Second, "00:00:01.0"},
		{1600 * time.Millisecond, "00:00:01.6"},
		{49 * time.Millisecond, "00:00:00.0"},
		{50 * time.Millisecond, "00:00:00.1"},
		{59*time.Second + 960*time.Millisecond, "00:01:00.0"},
		{time.Hour + time.Minute + 1250*time.Millisecond, "01:01:01.3"},
		{-time.Second, "00:00:00.0"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, FormatTimestamp(tc.in), "%s", tc.in)
	}
}

func TestWriter_Lines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	train := mts.NewTrain(2, mts.EastSpec(mts.Normal, 10, 6))
	steps := mts.Transitions()

	w.OnPhaseChange(train, steps[0], time.Second)
	w.OnPhaseChange(train, steps[1], time.Second)
	w.OnPhaseChange(train, steps[2], 1600*time.Millisecond)
	w.OnPhaseChange(train, mts.Transition{From: mts.Loading, To: mts.Loading}, 0)

	want := "00:00:01.0 Train  2 is ready to go East\n" +
		"00:00:01.0 Train  2 is ON the main track going East\n" +
		"00:00:01.6 Train  2 is OFF the main track after going East\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("event log mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, w.Err())
}

func TestWriter_WideIDs(t *testing.T) {
	line := FormatEvent(mts.EventReady, 123, mts.West, 0)
	assert.Equal(t, "00:00:00.0 Train 123 is ready to go West", line)
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("disk full")
}

func TestWriter_StopsAfterError(t *testing.T) {
	out := &failingWriter{}
	w := NewWriter(out)
	train := mts.NewTrain(0, mts.WestSpec(mts.High, 0, 0))

	w.OnPhaseChange(train, mts.Transitions()[0], 0)
	w.OnPhaseChange(train, mts.Transitions()[1], 0)

	assert.EqualError(t, w.Err(), "disk full")
	assert.Equal(t, 1, out.writes)
}

var lineRE = regexp.MustCompile(`^\d\d:\d\d:\d\d\.\d Train +\d+ is (ready to go|ON the main track going|OFF the main track after going) (East|West)$`)

func TestWriter_FullRun(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	specs := []mts.TrainSpec{
		mts.EastSpec(mts.Normal, 1, 2),
		mts.WestSpec(mts.High, 3, 1),
		mts.EastSpec(mts.High, 3, 1),
		mts.WestSpec(mts.Normal, 6, 1),
	}
	config := mts.DefaultConfig()
	config.TimeScale = 0.1

	_, err := mts.Run(context.Background(), specs, config, w)
	require.NoError(t, err)
	require.NoError(t, w.Err())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3*len(specs))
	for _, line := range lines {
		assert.Regexp(t, lineRE, line)
	}
	assert.True(t, strings.HasSuffix(lines[0], "Train  0 is ready to go East"), lines[0])
	// timestamps never go backwards
	for i := 1; i < len(lines); i++ {
		assert.LessOrEqual(t, lines[i-1][:10], lines[i][:10])
	}
}

func TestJSONRecorder_Run(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONRecorder(&buf)
	config := mts.Config{FairnessCap: 2, Clock: mts.NewManualClock()}
	sim, err := mts.NewSimulation([]mts.TrainSpec{
		mts.EastSpec(mts.Normal, 0, 0),
		mts.WestSpec(mts.High, 0, 0),
	}, config)
	require.NoError(t, err)
	sim.AddObserver(r)

	_, err = sim.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Err())
	assert.Equal(t, 6, r.Count())

	events, err := ReadEvents(&buf)
	require.NoError(t, err)
	require.Len(t, events, 6)

	seen := make(map[uuid.UUID]bool)
	kinds := make(map[int][]mts.EventKind)
	for _, e := range events {
		assert.Equal(t, sim.ID(), e.RunID)
		assert.False(t, seen[e.ID], "duplicate event id")
		seen[e.ID] = true
		kinds[e.TrainID] = append(kinds[e.TrainID], e.Kind)
	}
	lifecycle := []mts.EventKind{mts.EventReady, mts.EventOnTrack, mts.EventOffTrack}
	assert.Equal(t, lifecycle, kinds[0])
	assert.Equal(t, lifecycle, kinds[1])
}

func TestCreateJSONRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	r, err := CreateJSONRecorder(path)
	require.NoError(t, err)

	train := mts.NewTrain(0, mts.EastSpec(mts.Normal, 0, 0))
	r.OnPhaseChange(train, mts.Transitions()[0], mts.Tenth)
	require.NoError(t, r.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	events, err := ReadEvents(f)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, mts.EventReady, events[0].Kind)
	assert.Equal(t, mts.Tenth, events[0].At)
	assert.Equal(t, uuid.Nil, events[0].RunID)

	var nilRecorder *JSONRecorder
	assert.NoError(t, nilRecorder.Close())
}
