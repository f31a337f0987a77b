package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/anggasct/mts"
	"github.com/anggasct/mts/pkg/eventlog"
)

// Crossing is one train's use of the main track
type Crossing struct {
	TrainID   int
	Direction mts.Direction
	Priority  mts.Priority
	// Rule is the admission rule that granted the track.
	Rule mts.Rule
	// Streak is the direction streak including this crossing.
	Streak int
	On     time.Duration
	Off    time.Duration
}

// TimelineRecorder is an observer collecting crossings in grant order
type TimelineRecorder struct {
	mts.BaseObserver

	mutex     sync.Mutex
	crossings []Crossing
	index     map[int]int
}

// NewTimelineRecorder creates an empty recorder
func NewTimelineRecorder() *TimelineRecorder {
	return &TimelineRecorder{index: make(map[int]int)}
}

// OnGrant opens a crossing
func (r *TimelineRecorder) OnGrant(d mts.Decision, state mts.SchedulerState, at time.Duration) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.index[d.Train.ID] = len(r.crossings)
	r.crossings = append(r.crossings, Crossing{
		TrainID:   d.Train.ID,
		Direction: d.Train.Direction,
		Priority:  d.Train.Priority,
		Rule:      d.Rule,
		Streak:    d.Streak,
		On:        at,
	})
}

// OnPhaseChange closes a crossing once the train is off the track
func (r *TimelineRecorder) OnPhaseChange(t *mts.Train, tr mts.Transition, at time.Duration) {
	if tr.To != mts.Crossed {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if i, ok := r.index[t.ID]; ok {
		r.crossings[i].Off = at
	}
}

// Crossings returns the recorded crossings in grant order
func (r *TimelineRecorder) Crossings() []Crossing {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Crossing, len(r.crossings))
	copy(out, r.crossings)
	return out
}

// DOTGenerator generates Graphviz DOT format representations of a run
type DOTGenerator struct {
	crossings []Crossing
	options   DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowRules     bool
	ShowTimes     bool
	RankDirection string // "TB", "LR", "BT", "RL"
	NodeShape     string
	EastColor     string
	WestColor     string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowRules:     true,
		ShowTimes:     true,
		RankDirection: "LR",
		NodeShape:     "box",
		EastColor:     "lightblue",
		WestColor:     "lightsalmon",
	}
}

// NewDOTGenerator creates a new DOT generator for the given crossings
func NewDOTGenerator(crossings []Crossing, options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator{
		crossings: crossings,
		options:   opts,
	}
}

func nodeID(c Crossing) string {
	return fmt.Sprintf("train%d", c.TrainID)
}

// Generate creates a DOT representation of the crossing order
func (g *DOTGenerator) Generate() (string, error) {
	var dot strings.Builder

	dot.WriteString("digraph CrossingOrder {\n")
	dot.WriteString(fmt.Sprintf("  rankdir=%s;\n", g.options.RankDirection))
	dot.WriteString(fmt.Sprintf("  node [shape=%s style=filled];\n", g.options.NodeShape))
	dot.WriteString("  edge [fontsize=10];\n\n")

	dot.WriteString("  // Crossings\n")
	seen := make(map[int]bool, len(g.crossings))
	for _, c := range g.crossings {
		if seen[c.TrainID] {
			return "", fmt.Errorf("train %d crosses twice", c.TrainID)
		}
		seen[c.TrainID] = true
		g.generateNode(&dot, c)
	}

	dot.WriteString("  // Order\n")
	for i := 1; i < len(g.crossings); i++ {
		prev, next := g.crossings[i-1], g.crossings[i]
		if g.options.ShowRules {
			dot.WriteString(fmt.Sprintf("  %s -> %s [label=\"%s\"];\n", nodeID(prev), nodeID(next), next.Rule))
		} else {
			dot.WriteString(fmt.Sprintf("  %s -> %s;\n", nodeID(prev), nodeID(next)))
		}
	}

	dot.WriteString("}\n")

	return dot.String(), nil
}

// generateNode generates a DOT node for a single crossing
func (g *DOTGenerator) generateNode(dot *strings.Builder, c Crossing) {
	fillColor := g.options.EastColor
	if c.Direction == mts.West {
		fillColor = g.options.WestColor
	}

	label := fmt.Sprintf("Train %d\\n%s %s", c.TrainID, c.Priority, c.Direction)
	if g.options.ShowTimes {
		label += fmt.Sprintf("\\n%s - %s", eventlog.FormatTimestamp(c.On), eventlog.FormatTimestamp(c.Off))
	}

	peripheries := 1
	if c.Priority == mts.High {
		peripheries = 2
	}

	dot.WriteString(fmt.Sprintf("  %s [fillcolor=%s peripheries=%d label=\"%s\"];\n",
		nodeID(c), fillColor, peripheries, label))
}

// GenerateLifecycle creates a DOT representation of the train lifecycle
func GenerateLifecycle() string {
	var dot strings.Builder
	dot.WriteString("digraph Lifecycle {\n")
	dot.WriteString("  rankdir=LR;\n")
	dot.WriteString("  node [shape=box];\n")
	for _, tr := range mts.Transitions() {
		to := tr.To.String()
		if tr.To.IsFinal() {
			dot.WriteString(fmt.Sprintf("  \"%s\" [shape=doublecircle];\n", to))
		}
		dot.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [label=\"%s\"];\n", tr.From, to, tr.Event))
	}
	dot.WriteString("}\n")
	return dot.String()
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// SVGGenerator generates SVG representations by calling Graphviz
type SVGGenerator struct {
	dotGenerator *DOTGenerator
}

// NewSVGGenerator creates a new SVG generator
func NewSVGGenerator(crossings []Crossing, options ...DOTOptions) *SVGGenerator {
	return &SVGGenerator{
		dotGenerator: NewDOTGenerator(crossings, options...),
	}
}

// Generate creates an SVG representation of the crossing order
func (g *SVGGenerator) Generate() (string, error) {
	dotContent, err := g.dotGenerator.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}
